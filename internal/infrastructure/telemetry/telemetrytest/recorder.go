// Package telemetrytest provides a recording Exporter for tests in
// other packages. Pipelines built over it via NewWithExporter capture
// every exported span, metric snapshot, and log record for assertion.
package telemetrytest

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
)

// Recorder is a telemetry.Exporter that stores everything it receives.
type Recorder struct {
	mu       sync.Mutex
	spans    []*telemetry.Span
	metrics  []telemetry.CounterSnapshot
	logs     []telemetry.LogRecord
	shutdown bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ExportSpans(_ context.Context, spans []*telemetry.Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *Recorder) ExportMetrics(_ context.Context, metrics []telemetry.CounterSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, metrics...)
	return nil
}

func (r *Recorder) ExportLogs(_ context.Context, logs []telemetry.LogRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
	return nil
}

func (r *Recorder) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

// Spans returns a copy of all exported spans.
func (r *Recorder) Spans() []*telemetry.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*telemetry.Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// SpanByName returns the first exported span with the given name.
func (r *Recorder) SpanByName(name string) (*telemetry.Span, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spans {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// SpansByName returns every exported span with the given name.
func (r *Recorder) SpansByName(name string) []*telemetry.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*telemetry.Span
	for _, s := range r.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Metrics returns a copy of all exported counter snapshots.
func (r *Recorder) Metrics() []telemetry.CounterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.CounterSnapshot, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Logs returns a copy of all exported log records.
func (r *Recorder) Logs() []telemetry.LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.LogRecord, len(r.logs))
	copy(out, r.logs)
	return out
}

// ShutdownCalled reports whether Shutdown ran.
func (r *Recorder) ShutdownCalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// NewPipeline builds a telemetry bundle over a fresh Recorder with a
// flush interval long enough that tests control flushing explicitly.
// The base logger discards local output but keeps info level enabled,
// so the log bridge still forwards records to the Recorder.
func NewPipeline(service string) (*telemetry.Telemetry, *Recorder) {
	rec := NewRecorder()
	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(io.Discard),
		zapcore.InfoLevel,
	))
	tel := telemetry.NewWithExporter(telemetry.Config{
		ServiceName:   service,
		FlushInterval: time.Hour, // effectively never; ForceFlush drives export
		Logger:        logger,
	}, rec)
	return tel, rec
}
