package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink receives structured log records for export.
type LogSink interface {
	SubmitLog(LogRecord)
}

// CorrelatedLogger tees the logger's output into the export pipeline.
// Every entry still reaches the original cores; a copy is forwarded to
// the sink as a log record carrying trace_id/span_id fields when present.
func CorrelatedLogger(base *zap.Logger, sink LogSink) *zap.Logger {
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &exportCore{level: core, sink: sink})
	}))
}

// SpanFields returns the correlation fields for the active span, for
// attaching to log lines emitted while handling its unit of work.
func SpanFields(ctx context.Context) []zap.Field {
	sc, ok := SpanContextFromContext(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID),
		zap.String("span_id", sc.SpanID),
	}
}

// exportCore converts zap entries into LogRecords. It never writes
// anywhere itself; delivery failure handling lives in the processor.
type exportCore struct {
	level  zapcore.LevelEnabler
	sink   LogSink
	fields []zapcore.Field
}

func (c *exportCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

func (c *exportCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &exportCore{level: c.level, sink: c.sink}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (c *exportCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *exportCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	attrs := enc.Fields

	rec := LogRecord{
		Time:     entry.Time,
		Severity: entry.Level.String(),
		Body:     entry.Message,
		Attrs:    attrs,
	}
	if tid, ok := attrs["trace_id"].(string); ok {
		rec.TraceID = tid
		delete(attrs, "trace_id")
	}
	if sid, ok := attrs["span_id"].(string); ok {
		rec.SpanID = sid
		delete(attrs, "span_id")
	}

	c.sink.SubmitLog(rec)
	return nil
}

func (c *exportCore) Sync() error { return nil }
