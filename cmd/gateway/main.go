package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tracechain-io/tracechain/internal/gateway"
	"github.com/tracechain-io/tracechain/internal/infrastructure/config"
	"github.com/tracechain-io/tracechain/internal/infrastructure/logging"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
)

const (
	serviceName = "api-gateway"
	defaultPort = "8000"
)

func main() {
	cfg := config.LoadOrDefault(defaultPort)

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		logger = logging.NewDefault()
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:       serviceName,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		FlushInterval:     cfg.Telemetry.FlushInterval,
		BatchSize:         cfg.Telemetry.BatchSize,
		QueueSize:         cfg.Telemetry.QueueSize,
		ExportTimeout:     cfg.Telemetry.ExportTimeout,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	srv := gateway.NewServer(cfg, tel)

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Run() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := tel.Close(ctx); err != nil {
		logger.Error("telemetry close error", zap.Error(err))
	}
}
