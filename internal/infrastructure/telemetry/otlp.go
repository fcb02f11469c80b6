package telemetry

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const scopeName = "github.com/tracechain-io/tracechain"

// OTLPExporter delivers spans, counter snapshots, and log records to an
// OTLP collector over gRPC. Uses an insecure channel; the collector is a
// local sidecar in this deployment.
type OTLPExporter struct {
	conn    *grpc.ClientConn
	trace   coltracepb.TraceServiceClient
	metrics colmetricspb.MetricsServiceClient
	logs    collogspb.LogsServiceClient
	res     *resourcepb.Resource
}

// NewOTLPExporter connects to the collector at endpoint (host:port) and
// stamps all exported telemetry with the given service name.
func NewOTLPExporter(endpoint, serviceName string) (*OTLPExporter, error) {
	// OTEL_EXPORTER_OTLP_ENDPOINT is conventionally written with a scheme;
	// the gRPC target wants bare host:port.
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create collector channel: %w", err)
	}
	return &OTLPExporter{
		conn:    conn,
		trace:   coltracepb.NewTraceServiceClient(conn),
		metrics: colmetricspb.NewMetricsServiceClient(conn),
		logs:    collogspb.NewLogsServiceClient(conn),
		res: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{
				{Key: "service.name", Value: stringValue(serviceName)},
			},
		},
	}, nil
}

// ExportSpans transmits one batch of sealed spans.
func (e *OTLPExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	if len(spans) == 0 {
		return nil
	}
	pbSpans := make([]*tracepb.Span, 0, len(spans))
	for _, s := range spans {
		pbSpans = append(pbSpans, toProtoSpan(s))
	}
	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: e.res,
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: &commonpb.InstrumentationScope{Name: scopeName},
				Spans: pbSpans,
			}},
		}},
	}
	_, err := e.trace.Export(ctx, req)
	return err
}

// ExportMetrics transmits cumulative counter snapshots.
func (e *OTLPExporter) ExportMetrics(ctx context.Context, metrics []CounterSnapshot) error {
	if len(metrics) == 0 {
		return nil
	}
	pbMetrics := make([]*metricspb.Metric, 0, len(metrics))
	for _, m := range metrics {
		pbMetrics = append(pbMetrics, toProtoMetric(m))
	}
	req := &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: e.res,
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: scopeName},
				Metrics: pbMetrics,
			}},
		}},
	}
	_, err := e.metrics.Export(ctx, req)
	return err
}

// ExportLogs transmits correlated log records.
func (e *OTLPExporter) ExportLogs(ctx context.Context, logs []LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	pbLogs := make([]*logspb.LogRecord, 0, len(logs))
	for _, rec := range logs {
		pbLogs = append(pbLogs, toProtoLogRecord(rec))
	}
	req := &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: e.res,
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: scopeName},
				LogRecords: pbLogs,
			}},
		}},
	}
	_, err := e.logs.Export(ctx, req)
	return err
}

// Shutdown closes the collector channel.
func (e *OTLPExporter) Shutdown(context.Context) error {
	return e.conn.Close()
}

func toProtoSpan(s *Span) *tracepb.Span {
	span := &tracepb.Span{
		TraceId:           hexID(s.Context.TraceID),
		SpanId:            hexID(s.Context.SpanID),
		Name:              s.Name,
		Kind:              toProtoKind(s.Kind),
		StartTimeUnixNano: uint64(s.StartTime.UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime.UnixNano()),
		Attributes:        toProtoAttrMap(s.Attributes()),
		Status:            toProtoStatus(s),
	}
	if s.Context.ParentID != "" {
		span.ParentSpanId = hexID(s.Context.ParentID)
	}
	return span
}

func toProtoKind(k SpanKind) tracepb.Span_SpanKind {
	switch k {
	case SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	default:
		return tracepb.Span_SPAN_KIND_INTERNAL
	}
}

func toProtoStatus(s *Span) *tracepb.Status {
	switch s.Status {
	case StatusOk:
		return &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK}
	case StatusError:
		return &tracepb.Status{
			Code:    tracepb.Status_STATUS_CODE_ERROR,
			Message: s.StatusDesc,
		}
	default:
		return &tracepb.Status{Code: tracepb.Status_STATUS_CODE_UNSET}
	}
}

func toProtoMetric(m CounterSnapshot) *metricspb.Metric {
	points := make([]*metricspb.NumberDataPoint, 0, len(m.Points))
	for _, p := range m.Points {
		attrs := make([]*commonpb.KeyValue, 0, len(p.Attrs))
		for _, a := range p.Attrs {
			attrs = append(attrs, &commonpb.KeyValue{Key: a.Key, Value: stringValue(a.Value)})
		}
		points = append(points, &metricspb.NumberDataPoint{
			Attributes:        attrs,
			StartTimeUnixNano: uint64(p.Start.UnixNano()),
			TimeUnixNano:      uint64(p.Time.UnixNano()),
			Value:             &metricspb.NumberDataPoint_AsInt{AsInt: p.Value},
		})
	}
	return &metricspb.Metric{
		Name:        m.Name,
		Description: m.Description,
		Unit:        m.Unit,
		Data: &metricspb.Metric_Sum{
			Sum: &metricspb.Sum{
				DataPoints:             points,
				AggregationTemporality: metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
				IsMonotonic:            true,
			},
		},
	}
}

func toProtoLogRecord(rec LogRecord) *logspb.LogRecord {
	out := &logspb.LogRecord{
		TimeUnixNano:   uint64(rec.Time.UnixNano()),
		SeverityText:   rec.Severity,
		SeverityNumber: toProtoSeverity(rec.Severity),
		Body:           stringValue(rec.Body),
		Attributes:     toProtoAttrMap(rec.Attrs),
	}
	if isValidTraceID(rec.TraceID) {
		out.TraceId = hexID(rec.TraceID)
	}
	if isValidSpanID(rec.SpanID) {
		out.SpanId = hexID(rec.SpanID)
	}
	return out
}

func toProtoSeverity(text string) logspb.SeverityNumber {
	switch text {
	case "debug":
		return logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	case "info":
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	case "warn":
		return logspb.SeverityNumber_SEVERITY_NUMBER_WARN
	case "error":
		return logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
	case "fatal":
		return logspb.SeverityNumber_SEVERITY_NUMBER_FATAL
	default:
		return logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED
	}
}

// toProtoAttrMap converts scalar attributes, sorting keys so output is
// deterministic for tests and batch diffing.
func toProtoAttrMap(attrs map[string]any) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*commonpb.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, &commonpb.KeyValue{Key: k, Value: anyValue(attrs[k])})
	}
	return out
}

func anyValue(v any) *commonpb.AnyValue {
	switch val := v.(type) {
	case string:
		return stringValue(val)
	case bool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: val}}
	case int:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: int64(val)}}
	case int64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: val}}
	case float64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: val}}
	case time.Duration:
		return stringValue(val.String())
	case error:
		return stringValue(val.Error())
	default:
		return stringValue(fmt.Sprintf("%v", val))
	}
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

// hexID decodes a validated lowercase hex identifier. Invalid input
// cannot reach here; a decode failure yields nil which the collector
// rejects per-span rather than crashing the exporter.
func hexID(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
