package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestProcessor(t *testing.T, exporter Exporter, cfg ProcessorConfig) *BatchProcessor {
	t.Helper()
	p := NewBatchProcessor(exporter, nil, zap.NewNop(), cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func makeSealedSpan(name string) *Span {
	tracer := NewTracer("test-service", zap.NewNop(), nil)
	span, _ := tracer.Start(context.Background(), name)
	span.End()
	return span
}

func TestBatchFlushOnSizeThreshold(t *testing.T) {
	exporter := &recordingExporter{}
	p := newTestProcessor(t, exporter, ProcessorConfig{
		FlushInterval: time.Hour,
		MaxBatchSize:  4,
	})

	for i := 0; i < 4; i++ {
		p.SubmitSpan(makeSealedSpan(fmt.Sprintf("op%d", i)))
	}

	assert.Eventually(t, func() bool {
		return len(exporter.Spans()) == 4
	}, time.Second, 5*time.Millisecond, "a full batch flushes without waiting for the timer")
}

func TestBatchFlushOnTimer(t *testing.T) {
	exporter := &recordingExporter{}
	p := newTestProcessor(t, exporter, ProcessorConfig{
		FlushInterval: 20 * time.Millisecond,
		MaxBatchSize:  100,
	})

	p.SubmitSpan(makeSealedSpan("timer_op"))

	assert.Eventually(t, func() bool {
		return len(exporter.Spans()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExportFailureRetriesOnceThenDrops(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	exporter := &recordingExporter{}
	exporter.Fail(1)
	p := NewBatchProcessor(exporter, nil, zap.New(core), ProcessorConfig{FlushInterval: time.Hour})
	defer shutdownProcessor(t, p)

	p.SubmitSpan(makeSealedSpan("flaky"))
	require.NoError(t, p.ForceFlush(context.Background()))

	assert.Len(t, exporter.Spans(), 1, "single failure succeeds on retry")
	assert.Equal(t, 1, logs.FilterMessage("telemetry export failed, retrying").Len())

	exporter.Fail(2)
	p.SubmitSpan(makeSealedSpan("doomed"))
	require.NoError(t, p.ForceFlush(context.Background()))

	assert.Len(t, exporter.Spans(), 1, "batch dropped after the bounded retry")
	assert.Equal(t, 1, logs.FilterMessage("telemetry export failed, dropping batch").Len())
}

func TestRetryGetsFreshExportDeadline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	exporter := &deadlineExporter{}
	p := NewBatchProcessor(exporter, nil, zap.New(core), ProcessorConfig{
		FlushInterval: time.Hour,
		ExportTimeout: 50 * time.Millisecond,
	})
	defer shutdownProcessor(t, p)

	p.SubmitSpan(makeSealedSpan("slow_then_ok"))
	require.NoError(t, p.ForceFlush(context.Background()))

	assert.Len(t, exporter.Spans(), 1, "retry succeeds under its own deadline")
	assert.Equal(t, 1, logs.FilterMessage("telemetry export failed, retrying").Len())
	assert.Equal(t, 0, logs.FilterMessage("telemetry export failed, dropping batch").Len())
}

func TestQueueFullDropsWithWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	// Tiny queue and a timer that never fires: the run loop will pick up
	// at most a couple of spans before the queue backs up.
	blocked := make(chan struct{})
	exporter := &blockingExporter{release: blocked}
	p := NewBatchProcessor(exporter, nil, zap.New(core), ProcessorConfig{
		FlushInterval: 10 * time.Millisecond,
		MaxBatchSize:  1,
		QueueSize:     1,
	})
	defer func() {
		close(blocked)
		shutdownProcessor(t, p)
	}()

	for i := 0; i < 50; i++ {
		p.SubmitSpan(makeSealedSpan("burst"))
	}

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("span queue full, dropping span").Len() > 0
	}, time.Second, 5*time.Millisecond, "overflow drops locally instead of blocking the caller")
}

func TestMetricsExportedOnFlush(t *testing.T) {
	exporter := &recordingExporter{}
	meter := NewMeter("test-service")
	meter.Counter("requests", "{request}", "").Add(3, String("user.id", "123"))

	p := NewBatchProcessor(exporter, meter, zap.NewNop(), ProcessorConfig{FlushInterval: time.Hour})
	defer shutdownProcessor(t, p)

	require.NoError(t, p.ForceFlush(context.Background()))

	batches := exporter.MetricBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "requests", batches[0][0].Name)
	assert.Equal(t, int64(3), batches[0][0].Points[0].Value)
}

func TestLogsExported(t *testing.T) {
	exporter := &recordingExporter{}
	p := newTestProcessor(t, exporter, ProcessorConfig{FlushInterval: time.Hour})

	p.SubmitLog(LogRecord{
		Time:     time.Now(),
		Severity: "info",
		Body:     "request received",
		TraceID:  "0af7651916cd43dd8448eb211c80319c",
		SpanID:   "b7ad6b7169203331",
	})
	require.NoError(t, p.ForceFlush(context.Background()))

	logs := exporter.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "request received", logs[0].Body)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", logs[0].TraceID)
}

func TestShutdownFlushesAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	exporter := &recordingExporter{}
	p := NewBatchProcessor(exporter, nil, zap.NewNop(), ProcessorConfig{FlushInterval: time.Hour})

	p.SubmitSpan(makeSealedSpan("pending"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	assert.Len(t, exporter.Spans(), 1, "pending spans are flushed on shutdown")
	assert.True(t, exporter.ShutdownCalled())

	// Submissions after shutdown are silently discarded.
	p.SubmitSpan(makeSealedSpan("late"))
	assert.Len(t, exporter.Spans(), 1)
	require.NoError(t, p.Shutdown(ctx), "repeated shutdown is safe")
}

func shutdownProcessor(t *testing.T, p *BatchProcessor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}

// deadlineExporter burns the first attempt's whole context budget and
// then succeeds only if the next attempt arrives with an unexpired
// context.
type deadlineExporter struct {
	mu    sync.Mutex
	calls int
	spans []*Span
}

func (d *deadlineExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	d.mu.Lock()
	d.calls++
	first := d.calls == 1
	d.mu.Unlock()

	if first {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.spans = append(d.spans, spans...)
	d.mu.Unlock()
	return nil
}

func (d *deadlineExporter) ExportMetrics(context.Context, []CounterSnapshot) error { return nil }
func (d *deadlineExporter) ExportLogs(context.Context, []LogRecord) error          { return nil }
func (d *deadlineExporter) Shutdown(context.Context) error                         { return nil }

func (d *deadlineExporter) Spans() []*Span {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Span, len(d.spans))
	copy(out, d.spans)
	return out
}

// blockingExporter parks every export until released, for backpressure
// tests.
type blockingExporter struct {
	release chan struct{}
}

func (b *blockingExporter) ExportSpans(context.Context, []*Span) error {
	<-b.release
	return nil
}

func (b *blockingExporter) ExportMetrics(context.Context, []CounterSnapshot) error {
	<-b.release
	return nil
}

func (b *blockingExporter) ExportLogs(context.Context, []LogRecord) error {
	<-b.release
	return nil
}

func (b *blockingExporter) Shutdown(context.Context) error { return nil }
