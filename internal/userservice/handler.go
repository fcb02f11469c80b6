package userservice

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracechain-io/tracechain/internal/infrastructure/monitoring"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
	"github.com/tracechain-io/tracechain/internal/shared/types"
	"github.com/tracechain-io/tracechain/internal/userservice/store"
)

// Handler serves the user service's internal endpoints.
type Handler struct {
	tel     *telemetry.Telemetry
	store   *store.Store
	metrics *monitoring.Metrics
	lookups *telemetry.Counter
}

// NewHandler creates the user service handler. metrics may be nil.
func NewHandler(tel *telemetry.Telemetry, st *store.Store, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		tel:     tel,
		store:   st,
		metrics: metrics,
		lookups: tel.Meter.Counter("user_lookups", "{lookup}", "User store lookups performed"),
	}
}

// GetUser looks a user up in the store. The middleware has already
// joined the caller's trace, so the lookup span created here is a
// child of the gateway's handler span.
func (h *Handler) GetUser(c *gin.Context) {
	userID := c.Param("id")

	span, ctx := h.tel.Tracer.Start(c.Request.Context(), "find_user_in_db")
	defer span.End()

	span.SetAttribute("user.id", userID)
	h.lookups.Add(1, telemetry.String("user.id", userID))

	logger := h.tel.Logger.With(telemetry.SpanFields(ctx)...)
	logger.Info("looking up user", zap.String("user_id", userID))

	user, found := h.store.Get(userID)
	if h.metrics != nil {
		h.metrics.RecordLookup(found)
	}

	if !found {
		span.SetAttribute("user.found", false)
		span.SetAttribute("error", true)
		span.SetStatus(telemetry.StatusError, "user not found")
		logger.Warn("user not found", zap.String("user_id", userID))
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:  "User not found",
			Status: http.StatusNotFound,
		})
		return
	}

	span.SetAttribute("user.found", true)
	span.SetAttribute("user.username", user.Username)
	span.SetStatus(telemetry.StatusOk, "")
	logger.Info("user found", zap.String("username", user.Username))
	c.JSON(http.StatusOK, user)
}

// Health reports liveness, the store size, and the aggregate request
// counters.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "service": h.tel.Tracer.Service(), "users": h.store.Len()}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		body["requests"] = snap.TotalRequests
		body["errors"] = snap.TotalErrors
		body["avg_latency"] = snap.AverageLatency().String()
	}
	c.JSON(http.StatusOK, body)
}
