package telemetry

import (
	"context"
	"errors"
	"sync"
)

// recordingExporter is the fake sink used across the package tests: it
// remembers every batch it was handed and can be told to fail.
type recordingExporter struct {
	mu       sync.Mutex
	spans    []*Span
	metrics  [][]CounterSnapshot
	logs     []LogRecord
	failures int
	shutdown bool
}

var errExportFailed = errors.New("collector unavailable")

func (r *recordingExporter) ExportSpans(_ context.Context, spans []*Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errExportFailed
	}
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *recordingExporter) ExportMetrics(_ context.Context, metrics []CounterSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errExportFailed
	}
	r.metrics = append(r.metrics, metrics)
	return nil
}

func (r *recordingExporter) ExportLogs(_ context.Context, logs []LogRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errExportFailed
	}
	r.logs = append(r.logs, logs...)
	return nil
}

func (r *recordingExporter) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func (r *recordingExporter) Spans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Span, len(r.spans))
	copy(out, r.spans)
	return out
}

func (r *recordingExporter) Logs() []LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogRecord, len(r.logs))
	copy(out, r.logs)
	return out
}

func (r *recordingExporter) MetricBatches() [][]CounterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]CounterSnapshot, len(r.metrics))
	copy(out, r.metrics)
	return out
}

func (r *recordingExporter) Fail(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
}

func (r *recordingExporter) ShutdownCalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// spanByName finds one recorded span by operation name.
func (r *recordingExporter) spanByName(name string) *Span {
	for _, s := range r.Spans() {
		if s.Name == name {
			return s
		}
	}
	return nil
}
