package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config describes one service's telemetry pipeline.
type Config struct {
	ServiceName       string
	CollectorEndpoint string
	FlushInterval     time.Duration
	BatchSize         int
	QueueSize         int
	ExportTimeout     time.Duration
	Logger            *zap.Logger
}

// Telemetry bundles the tracer, meter, and correlated logger behind one
// explicitly constructed value. There are no package-level providers:
// each service builds its telemetry at startup and passes it down, which
// keeps tests free to swap in a recording exporter.
type Telemetry struct {
	Tracer *Tracer
	Meter  *Meter
	Logger *zap.Logger

	processor *BatchProcessor
}

// New builds a pipeline exporting to the OTLP collector in cfg.
func New(cfg Config) (*Telemetry, error) {
	exporter, err := NewOTLPExporter(cfg.CollectorEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	return NewWithExporter(cfg, exporter), nil
}

// NewWithExporter builds a pipeline over any Exporter. Tests pass a
// recording fake here.
func NewWithExporter(cfg Config, exporter Exporter) *Telemetry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := NewMeter(cfg.ServiceName)
	processor := NewBatchProcessor(exporter, meter, logger, ProcessorConfig{
		FlushInterval: cfg.FlushInterval,
		MaxBatchSize:  cfg.BatchSize,
		QueueSize:     cfg.QueueSize,
		ExportTimeout: cfg.ExportTimeout,
	})

	return &Telemetry{
		Tracer:    NewTracer(cfg.ServiceName, logger, processor),
		Meter:     meter,
		Logger:    CorrelatedLogger(logger, processor),
		processor: processor,
	}
}

// ForceFlush exports everything currently buffered.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	return t.processor.ForceFlush(ctx)
}

// Close flushes remaining telemetry and shuts the exporter down.
func (t *Telemetry) Close(ctx context.Context) error {
	return t.processor.Shutdown(ctx)
}
