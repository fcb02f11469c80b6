// Package gateway implements the public-facing service of the call
// chain: it accepts user lookups, calls the user service with the
// request's span context propagated, and maps downstream outcomes to
// its own responses.
package gateway

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apimw "github.com/tracechain-io/tracechain/internal/api/middleware"
	"github.com/tracechain-io/tracechain/internal/gateway/userclient"
	"github.com/tracechain-io/tracechain/internal/infrastructure/config"
	"github.com/tracechain-io/tracechain/internal/infrastructure/monitoring"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	tel     *telemetry.Telemetry
	metrics *monitoring.Metrics
}

// NewServer creates a new gateway server instance.
func NewServer(cfg *config.Config, tel *telemetry.Telemetry) *Server {
	metrics := monitoring.NewMetrics("gateway")

	client := userclient.New(userclient.Config{
		BaseURL: cfg.Downstream.UserServiceURL,
		Timeout: cfg.Downstream.CallTimeout,
		Logger:  tel.Logger,
		Metrics: metrics,
	})

	handler := NewHandler(tel, client, metrics)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(apimw.CORS(apimw.DefaultCORSConfig()))
	router.Use(apimw.RateLimit(apimw.DefaultRateLimitConfig()))
	router.Use(telemetry.Middleware(tel.Tracer))
	router.Use(monitoring.Middleware(metrics))

	router.GET("/health", handler.Health)
	router.GET("/user/:id", handler.GetUser)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		router:  router,
		http:    &http.Server{Addr: addr, Handler: router},
		tel:     tel,
		metrics: metrics,
	}
}

// Router exposes the gin engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	s.tel.Logger.Info("gateway listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener. Telemetry
// shutdown stays with the caller that built it.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
