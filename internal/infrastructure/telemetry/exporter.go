package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogRecord is one structured log entry bound for the collector, tagged
// with the correlation identifiers of the span it was emitted under.
type LogRecord struct {
	Time     time.Time
	Severity string
	Body     string
	TraceID  string
	SpanID   string
	Attrs    map[string]any
}

// Exporter transmits completed telemetry to a collector. Implementations
// are the external boundary; everything above them is transport-agnostic.
// Implementations must not retain the batch slices past the call: the
// processor reuses their backing arrays for the next batch.
type Exporter interface {
	ExportSpans(ctx context.Context, spans []*Span) error
	ExportMetrics(ctx context.Context, metrics []CounterSnapshot) error
	ExportLogs(ctx context.Context, logs []LogRecord) error
	Shutdown(ctx context.Context) error
}

// ProcessorConfig tunes the batch processor.
type ProcessorConfig struct {
	FlushInterval time.Duration
	MaxBatchSize  int
	QueueSize     int
	ExportTimeout time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 128
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 10 * time.Second
	}
	return c
}

// BatchProcessor buffers sealed spans and log records and flushes them in
// batches on a timer or when a batch fills. Export runs on its own
// goroutine so a slow collector never adds request latency; delivery is
// best-effort with one bounded retry, then the batch is dropped with a
// local warning.
type BatchProcessor struct {
	exporter Exporter
	logger   *zap.Logger
	cfg      ProcessorConfig
	meter    *Meter

	spans    chan *Span
	logs     chan LogRecord
	flushReq chan chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewBatchProcessor starts the export loop. The meter may be nil; when
// set, counter snapshots are exported on every timer flush.
func NewBatchProcessor(exporter Exporter, meter *Meter, logger *zap.Logger, cfg ProcessorConfig) *BatchProcessor {
	cfg = cfg.withDefaults()
	p := &BatchProcessor{
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
		meter:    meter,
		spans:    make(chan *Span, cfg.QueueSize),
		logs:     make(chan LogRecord, cfg.QueueSize),
		flushReq: make(chan chan struct{}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go p.run()
	return p
}

// SubmitSpan enqueues a sealed span. Never blocks: a full queue drops the
// span with a warning rather than stalling the request path.
func (p *BatchProcessor) SubmitSpan(span *Span) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.spans <- span:
	default:
		p.logger.Warn("span queue full, dropping span",
			zap.String("trace_id", span.Context.TraceID),
			zap.String("span_id", span.Context.SpanID),
		)
	}
}

// SubmitLog enqueues a log record for export.
func (p *BatchProcessor) SubmitLog(rec LogRecord) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.logs <- rec:
	default:
		p.logger.Warn("log queue full, dropping record",
			zap.String("trace_id", rec.TraceID),
		)
	}
}

// ForceFlush drains queued signals and exports them, blocking until the
// flush completes or ctx expires.
func (p *BatchProcessor) ForceFlush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.flushReq <- ack:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown flushes remaining telemetry and shuts the exporter down.
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.done) })
	select {
	case <-p.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.exporter.Shutdown(ctx)
}

func (p *BatchProcessor) run() {
	defer close(p.stopped)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	spanBuf := make([]*Span, 0, p.cfg.MaxBatchSize)
	logBuf := make([]LogRecord, 0, p.cfg.MaxBatchSize)

	for {
		select {
		case span := <-p.spans:
			spanBuf = append(spanBuf, span)
			if len(spanBuf) >= p.cfg.MaxBatchSize {
				spanBuf = p.exportSpans(spanBuf)
			}
		case rec := <-p.logs:
			logBuf = append(logBuf, rec)
			if len(logBuf) >= p.cfg.MaxBatchSize {
				logBuf = p.exportLogs(logBuf)
			}
		case <-ticker.C:
			spanBuf = p.exportSpans(spanBuf)
			logBuf = p.exportLogs(logBuf)
			p.exportMetrics()
		case ack := <-p.flushReq:
			spanBuf, logBuf = p.drain(spanBuf, logBuf)
			spanBuf = p.exportSpans(spanBuf)
			logBuf = p.exportLogs(logBuf)
			p.exportMetrics()
			close(ack)
		case <-p.done:
			spanBuf, logBuf = p.drain(spanBuf, logBuf)
			p.exportSpans(spanBuf)
			p.exportLogs(logBuf)
			p.exportMetrics()
			return
		}
	}
}

// drain pulls everything already queued without blocking.
func (p *BatchProcessor) drain(spanBuf []*Span, logBuf []LogRecord) ([]*Span, []LogRecord) {
	for {
		select {
		case span := <-p.spans:
			spanBuf = append(spanBuf, span)
		default:
			for {
				select {
				case rec := <-p.logs:
					logBuf = append(logBuf, rec)
				default:
					return spanBuf, logBuf
				}
			}
		}
	}
}

func (p *BatchProcessor) exportSpans(batch []*Span) []*Span {
	if len(batch) == 0 {
		return batch
	}
	p.export("spans", len(batch), func(ctx context.Context) error {
		return p.exporter.ExportSpans(ctx, batch)
	})
	return batch[:0]
}

func (p *BatchProcessor) exportLogs(batch []LogRecord) []LogRecord {
	if len(batch) == 0 {
		return batch
	}
	p.export("logs", len(batch), func(ctx context.Context) error {
		return p.exporter.ExportLogs(ctx, batch)
	})
	return batch[:0]
}

func (p *BatchProcessor) exportMetrics() {
	if p.meter == nil {
		return
	}
	snaps := p.meter.Snapshot()
	if len(snaps) == 0 {
		return
	}
	p.export("metrics", len(snaps), func(ctx context.Context) error {
		return p.exporter.ExportMetrics(ctx, snaps)
	})
}

// export runs one delivery attempt plus one retry, then drops the batch.
// Collector failures stay local: they are logged, never propagated.
func (p *BatchProcessor) export(signal string, count int, fn func(context.Context) error) {
	err := p.attempt(fn)
	if err == nil {
		return
	}
	p.logger.Warn("telemetry export failed, retrying",
		zap.String("signal", signal),
		zap.Int("count", count),
		zap.Error(err),
	)
	if err = p.attempt(fn); err != nil {
		p.logger.Warn("telemetry export failed, dropping batch",
			zap.String("signal", signal),
			zap.Int("count", count),
			zap.Error(err),
		)
	}
}

// attempt runs one delivery under its own deadline. The retry gets a
// fresh budget even when the first attempt consumed all of its own.
func (p *BatchProcessor) attempt(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ExportTimeout)
	defer cancel()
	return fn(ctx)
}
