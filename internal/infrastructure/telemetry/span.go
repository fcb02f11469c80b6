package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SpanStatus is the terminal disposition of a unit of work.
type SpanStatus int

const (
	StatusUnset SpanStatus = iota
	StatusOk
	StatusError
)

// String returns the status name for logs and export.
func (s SpanStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// SpanKind classifies where a span sits relative to the process boundary.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// Span is a timed record of one unit of work. It is mutated only by the
// goroutine handling its request; End seals it and hands ownership to the
// export pipeline.
type Span struct {
	Context    SpanContext
	Name       string
	Service    string
	Kind       SpanKind
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Status     SpanStatus
	StatusDesc string

	mu    sync.Mutex
	attrs map[string]any
	ended bool

	tracer *Tracer
}

// SetAttribute records a key/value attribute. Last write for a key wins.
// Values are scalars (string, bool, int/int64, float64).
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attrs[key] = value
}

// SetStatus records the span outcome.
func (s *Span) SetStatus(status SpanStatus, desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Status = status
	s.StatusDesc = desc
}

// SetError marks the span failed and records the error message.
func (s *Span) SetError(err error) {
	s.SetAttribute("error", true)
	if err != nil {
		s.SetStatus(StatusError, err.Error())
	} else {
		s.SetStatus(StatusError, "")
	}
}

// Attributes returns a copy of the attribute map.
func (s *Span) Attributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// Attribute returns one attribute value and whether it was set.
func (s *Span) Attribute(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Ended reports whether the span has been sealed.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// End seals the span and submits it for export. Ending an already-ended
// span logs a warning and does nothing else; a missing End is a leak in
// the trace, so handlers defer this on every path.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		s.tracer.logger.Warn("span ended twice",
			zap.String("trace_id", s.Context.TraceID),
			zap.String("span_id", s.Context.SpanID),
			zap.String("operation", s.Name),
		)
		return
	}
	s.ended = true
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.mu.Unlock()

	s.tracer.submit(s)
}

// SpanSink receives sealed spans for export.
type SpanSink interface {
	SubmitSpan(*Span)
}

// Tracer opens spans scoped to units of work and forwards sealed spans
// to the processor. One tracer per service process, passed explicitly.
type Tracer struct {
	service string
	logger  *zap.Logger
	sink    SpanSink
}

// NewTracer creates a tracer for the named service.
func NewTracer(service string, logger *zap.Logger, sink SpanSink) *Tracer {
	return &Tracer{
		service: service,
		logger:  logger,
		sink:    sink,
	}
}

// Start opens a span. If the context carries an active span context the
// new span becomes its child; otherwise a new trace root is started. The
// returned context carries the new span's identifiers for nesting and
// outbound propagation.
func (t *Tracer) Start(ctx context.Context, name string) (*Span, context.Context) {
	var sc SpanContext
	if parent, ok := SpanContextFromContext(ctx); ok {
		sc = parent.NewChild()
	} else {
		sc = NewRootContext()
	}

	span := &Span{
		Context:   sc,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
		tracer:    t,
	}
	return span, ContextWithSpanContext(ctx, sc)
}

// StartWithRemoteParent opens a span as the child of a context extracted
// from transport headers. Used by server middleware where the parent span
// lives in the calling process.
func (t *Tracer) StartWithRemoteParent(ctx context.Context, name string, remote SpanContext) (*Span, context.Context) {
	span := &Span{
		Context:   remote,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
		tracer:    t,
	}
	return span, ContextWithSpanContext(ctx, remote)
}

// Service returns the tracer's service name.
func (t *Tracer) Service() string { return t.service }

func (t *Tracer) submit(span *Span) {
	t.logSpan(span)
	if t.sink != nil {
		t.sink.SubmitSpan(span)
	}
}

// logSpan emits the local structured record for a completed span.
func (t *Tracer) logSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", span.Context.TraceID),
		zap.String("span_id", span.Context.SpanID),
		zap.String("operation", span.Name),
		zap.String("service", span.Service),
		zap.Duration("duration", span.Duration),
	}
	if span.Context.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.Context.ParentID))
	}

	if span.Status == StatusError {
		if span.StatusDesc != "" {
			fields = append(fields, zap.String("status_desc", span.StatusDesc))
		}
		t.logger.Error("span completed with error", fields...)
	} else {
		t.logger.Debug("span completed", fields...)
	}
}
