package telemetry

import (
	"context"
	"net/http"
	"strings"

	"github.com/tracechain-io/tracechain/internal/shared/id"
)

// TraceparentHeader is the W3C Trace Context propagation header.
const TraceparentHeader = "traceparent"

// traceparent layout: {version:2}-{trace-id:32}-{parent-id:16}-{flags:2}
const traceparentLen = 55

// SpanContext is the immutable identifier bundle correlating every signal
// emitted for one unit of work. TraceID is shared by the whole call chain;
// SpanID is unique per span; ParentID is empty only at the trace root.
type SpanContext struct {
	TraceID  string
	SpanID   string
	ParentID string
	Sampled  bool
}

// IsValid reports whether the context carries usable trace identifiers.
func (sc SpanContext) IsValid() bool {
	return isValidTraceID(sc.TraceID) && isValidSpanID(sc.SpanID)
}

// NewChild derives a context for a nested unit of work: same trace,
// parent set to the current span, fresh span ID.
func (sc SpanContext) NewChild() SpanContext {
	return SpanContext{
		TraceID:  sc.TraceID,
		SpanID:   id.NewSpanID(),
		ParentID: sc.SpanID,
		Sampled:  sc.Sampled,
	}
}

// NewRootContext starts a new trace. Roots are always sampled; there is
// no sampler, so the flag only round-trips through propagation.
func NewRootContext() SpanContext {
	return SpanContext{
		TraceID: id.NewTraceID(),
		SpanID:  id.NewSpanID(),
		Sampled: true,
	}
}

// FromHeaders reconstructs a span context from inbound request headers.
// A missing or malformed traceparent degrades to a new trace root:
// extraction never fails the request.
func FromHeaders(h http.Header) SpanContext {
	traceID, parentID, flags, ok := parseTraceparent(h.Get(TraceparentHeader))
	if !ok {
		return NewRootContext()
	}
	return SpanContext{
		TraceID:  traceID,
		SpanID:   id.NewSpanID(),
		ParentID: parentID,
		Sampled:  flags&0x01 == 0x01,
	}
}

// Inject serializes the context into outbound call headers. The current
// span ID travels as the callee's parent.
func (sc SpanContext) Inject(h http.Header) {
	if !sc.IsValid() {
		return
	}
	h.Set(TraceparentHeader, formatTraceparent(sc.TraceID, sc.SpanID, sc.Sampled))
}

// formatTraceparent renders version-00 traceparent. Identifiers from
// the generator are already lowercase hex; values that arrived off the
// wire may not be, so re-lower both.
func formatTraceparent(traceID, spanID string, sampled bool) string {
	flags := "00"
	if sampled {
		flags = "01"
	}
	var b strings.Builder
	b.Grow(traceparentLen)
	b.WriteString("00-")
	b.WriteString(strings.ToLower(traceID))
	b.WriteByte('-')
	b.WriteString(strings.ToLower(spanID))
	b.WriteByte('-')
	b.WriteString(flags)
	return b.String()
}

// parseTraceparent parses a W3C traceparent value using fixed offsets.
// Version "ff" is reserved and invalid; unknown versions are parsed per
// the version-00 layout with any extra suffix fields ignored.
func parseTraceparent(tp string) (traceID, parentID string, flags byte, ok bool) {
	if len(tp) < traceparentLen {
		return "", "", 0, false
	}
	if tp[2] != '-' || tp[35] != '-' || tp[52] != '-' {
		return "", "", 0, false
	}

	version := tp[0:2]
	if !isHex(version) || strings.EqualFold(version, "ff") {
		return "", "", 0, false
	}
	if version == "00" && len(tp) != traceparentLen {
		return "", "", 0, false
	}
	if len(tp) > traceparentLen && tp[traceparentLen] != '-' {
		return "", "", 0, false
	}

	traceID = strings.ToLower(tp[3:35])
	if !isValidTraceID(traceID) {
		return "", "", 0, false
	}
	parentID = strings.ToLower(tp[36:52])
	if !isValidSpanID(parentID) {
		return "", "", 0, false
	}
	flagsField := tp[53:55]
	if !isHex(flagsField) {
		return "", "", 0, false
	}
	return traceID, parentID, hexByte(flagsField), true
}

func isValidTraceID(s string) bool {
	return len(s) == 32 && isHex(s) && s != "00000000000000000000000000000000"
}

func isValidSpanID(s string) bool {
	return len(s) == 16 && isHex(s) && s != "0000000000000000"
}

func isHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func hexByte(s string) byte {
	return hexNibble(s[0])<<4 | hexNibble(s[1])
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Context keys for span context propagation within a process.
type contextKey string

const spanContextKey contextKey = "span_context"

// ContextWithSpanContext stores the active span's context.
func ContextWithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextKey, sc)
}

// SpanContextFromContext retrieves the active span context, if any.
func SpanContextFromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(spanContextKey).(SpanContext)
	return sc, ok && sc.IsValid()
}
