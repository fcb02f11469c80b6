// Package userservice implements the backing lookup service of the
// call chain. Its only consumer is the gateway; the /internal prefix
// marks the endpoint as not publicly routed.
package userservice

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apimw "github.com/tracechain-io/tracechain/internal/api/middleware"
	"github.com/tracechain-io/tracechain/internal/infrastructure/config"
	"github.com/tracechain-io/tracechain/internal/infrastructure/monitoring"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
	"github.com/tracechain-io/tracechain/internal/userservice/store"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	tel     *telemetry.Telemetry
	metrics *monitoring.Metrics
	store   *store.Store
}

// NewServer creates a new user service instance.
func NewServer(cfg *config.Config, tel *telemetry.Telemetry) *Server {
	metrics := monitoring.NewMetrics("userservice")
	st := store.Seeded()
	handler := NewHandler(tel, st, metrics)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(apimw.CORS(apimw.DefaultCORSConfig()))
	router.Use(telemetry.Middleware(tel.Tracer))
	router.Use(monitoring.Middleware(metrics))

	router.GET("/health", handler.Health)
	router.GET("/internal/user/:id", handler.GetUser)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		router:  router,
		http:    &http.Server{Addr: addr, Handler: router},
		tel:     tel,
		metrics: metrics,
		store:   st,
	}
}

// Router exposes the gin engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	s.tel.Logger.Info("user service listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
