package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracechain-io/tracechain/internal/gateway/userclient"
	"github.com/tracechain-io/tracechain/internal/infrastructure/monitoring"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
	"github.com/tracechain-io/tracechain/internal/shared/types"
)

// UserFetcher is the downstream dependency of the gateway handler.
// *userclient.Client satisfies it; tests substitute a fake.
type UserFetcher interface {
	GetUser(ctx context.Context, userID string) (*types.User, error)
}

// Handler serves the gateway's public endpoints.
type Handler struct {
	tel      *telemetry.Telemetry
	users    UserFetcher
	metrics  *monitoring.Metrics
	requests *telemetry.Counter
}

// NewHandler creates the gateway handler. metrics may be nil.
func NewHandler(tel *telemetry.Telemetry, users UserFetcher, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		tel:      tel,
		users:    users,
		metrics:  metrics,
		requests: tel.Meter.Counter("user_requests", "{request}", "User lookup requests handled by the gateway"),
	}
}

// GetUser proxies a user lookup to the user service. The downstream
// call carries this handler's span context, so the user service's
// spans join the same trace.
func (h *Handler) GetUser(c *gin.Context) {
	userID := c.Param("id")

	span, ctx := h.tel.Tracer.Start(c.Request.Context(), "get_user_handler")
	defer span.End()

	span.SetAttribute("user.id", userID)
	h.requests.Add(1, telemetry.String("user.id", userID))

	logger := h.tel.Logger.With(telemetry.SpanFields(ctx)...)
	logger.Info("request received", zap.String("user_id", userID))

	user, err := h.users.GetUser(ctx, userID)
	if err == nil {
		span.SetAttribute("http.status_code", int64(http.StatusOK))
		span.SetStatus(telemetry.StatusOk, "")
		c.JSON(http.StatusOK, user)
		return
	}

	if errors.Is(err, userclient.ErrNotFound) {
		span.SetAttribute("error", true)
		span.SetAttribute("http.status_code", int64(http.StatusNotFound))
		span.SetStatus(telemetry.StatusError, "user not found downstream")
		logger.Error("user service has no such user", zap.String("user_id", userID))
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:  "Failed to retrieve user data",
			Status: http.StatusNotFound,
		})
		return
	}

	var statusErr *userclient.StatusError
	if errors.As(err, &statusErr) {
		span.SetAttribute("error", true)
		span.SetAttribute("http.status_code", int64(statusErr.Code))
		span.SetStatus(telemetry.StatusError, statusErr.Error())
		logger.Error("user service returned error status", zap.Int("downstream_status", statusErr.Code))
		c.JSON(http.StatusBadGateway, types.ErrorResponse{
			Error:  "Failed to retrieve user data",
			Status: statusErr.Code,
		})
		return
	}

	// Transport failure: no response arrived, so there is no
	// http.status_code attribute to record.
	span.SetError(err)
	logger.Error("user service call failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// Health reports liveness plus the aggregate request counters.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "service": h.tel.Tracer.Service()}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		body["requests"] = snap.TotalRequests
		body["errors"] = snap.TotalErrors
		body["avg_latency"] = snap.AverageLatency().String()
	}
	c.JSON(http.StatusOK, body)
}
