package telemetry

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// fakeCollector is an in-process OTLP collector capturing everything the
// exporter sends over a real gRPC channel.
type fakeCollector struct {
	coltracepb.UnimplementedTraceServiceServer
	colmetricspb.UnimplementedMetricsServiceServer
	collogspb.UnimplementedLogsServiceServer

	mu      sync.Mutex
	traces  []*coltracepb.ExportTraceServiceRequest
	metrics []*colmetricspb.ExportMetricsServiceRequest
	logs    []*collogspb.ExportLogsServiceRequest
}

func (f *fakeCollector) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, proto.Clone(req).(*coltracepb.ExportTraceServiceRequest))
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

func (f *fakeCollector) ExportMetrics(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, proto.Clone(req).(*colmetricspb.ExportMetricsServiceRequest))
	return &colmetricspb.ExportMetricsServiceResponse{}, nil
}

func (f *fakeCollector) ExportLogs(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, proto.Clone(req).(*collogspb.ExportLogsServiceRequest))
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// metricsAdapter and logsAdapter split the collector's Export methods
// onto their distinct service interfaces, which all name the method
// Export.
type metricsAdapter struct{ *fakeCollector }

func (a metricsAdapter) Export(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	return a.ExportMetrics(ctx, req)
}

type logsAdapter struct{ *fakeCollector }

func (a logsAdapter) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	return a.ExportLogs(ctx, req)
}

func startFakeCollector(t *testing.T) (*fakeCollector, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	collector := &fakeCollector{}
	srv := grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(srv, collector)
	colmetricspb.RegisterMetricsServiceServer(srv, metricsAdapter{collector})
	collogspb.RegisterLogsServiceServer(srv, logsAdapter{collector})

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return collector, lis.Addr().String()
}

func TestOTLPExporterRoundTrip(t *testing.T) {
	collector, addr := startFakeCollector(t)

	exporter, err := NewOTLPExporter(addr, "gateway")
	require.NoError(t, err)
	defer func() { _ = exporter.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tracer := NewTracer("gateway", zap.NewNop(), nil)
	span, spanCtx := tracer.Start(context.Background(), "get_user_handler")
	span.SetAttribute("user.id", "123")
	span.End()

	require.NoError(t, exporter.ExportSpans(ctx, []*Span{span}))

	require.NoError(t, exporter.ExportMetrics(ctx, []CounterSnapshot{{
		Name: "user_requests",
		Unit: "{request}",
		Points: []CounterPoint{{
			Attrs: []Attr{String("user.id", "123")},
			Value: 2,
			Start: time.Now().Add(-time.Minute),
			Time:  time.Now(),
		}},
	}}))

	sc, _ := SpanContextFromContext(spanCtx)
	require.NoError(t, exporter.ExportLogs(ctx, []LogRecord{{
		Time:     time.Now(),
		Severity: "info",
		Body:     "user request handled",
		TraceID:  sc.TraceID,
		SpanID:   sc.SpanID,
	}}))

	collector.mu.Lock()
	defer collector.mu.Unlock()

	require.Len(t, collector.traces, 1)
	rs := collector.traces[0].ResourceSpans[0]
	assert.Equal(t, "service.name", rs.Resource.Attributes[0].Key)
	assert.Equal(t, "gateway", rs.Resource.Attributes[0].Value.GetStringValue())
	got := rs.ScopeSpans[0].Spans[0]
	assert.Equal(t, "get_user_handler", got.Name)
	assert.Len(t, got.TraceId, 16)
	assert.Len(t, got.SpanId, 8)

	require.Len(t, collector.metrics, 1)
	metric := collector.metrics[0].ResourceMetrics[0].ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "user_requests", metric.Name)
	assert.Equal(t, int64(2), metric.GetSum().DataPoints[0].GetAsInt())

	require.Len(t, collector.logs, 1)
	rec := collector.logs[0].ResourceLogs[0].ScopeLogs[0].LogRecords[0]
	assert.Equal(t, "user request handled", rec.Body.GetStringValue())
	assert.Len(t, rec.TraceId, 16)
	assert.Len(t, rec.SpanId, 8)
}

func TestOTLPExporterEmptyBatchesSkipped(t *testing.T) {
	collector, addr := startFakeCollector(t)

	exporter, err := NewOTLPExporter(addr, "gateway")
	require.NoError(t, err)
	defer func() { _ = exporter.Shutdown(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, exporter.ExportSpans(ctx, nil))
	require.NoError(t, exporter.ExportMetrics(ctx, nil))
	require.NoError(t, exporter.ExportLogs(ctx, nil))

	collector.mu.Lock()
	defer collector.mu.Unlock()
	assert.Empty(t, collector.traces)
	assert.Empty(t, collector.metrics)
	assert.Empty(t, collector.logs)
}
