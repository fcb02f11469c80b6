package telemetry

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tracechain-io/tracechain/internal/shared/id"
)

// Middleware creates Gin middleware that opens a server span per request.
// The span context is extracted from inbound headers (joining the
// caller's trace) or freshly created (starting a new one), stored on the
// request context for handlers, and the span is always ended when the
// handler returns, whatever path it took.
func Middleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		remote := FromHeaders(c.Request.Header)

		name := c.FullPath()
		if name == "" {
			name = c.Request.Method + " " + c.Request.URL.Path
		}

		span, ctx := tracer.StartWithRemoteParent(c.Request.Context(), name, remote)
		span.Kind = SpanKindServer
		span.SetAttribute("http.method", c.Request.Method)
		span.SetAttribute("http.target", c.Request.URL.Path)
		span.SetAttribute("http.host", c.Request.Host)

		reqID := id.NewRequestID()
		span.SetAttribute("request.id", reqID.String())

		// Correlation identifiers echoed back for client-side debugging.
		c.Header("X-Trace-Id", remote.TraceID)
		c.Header("X-Request-Id", reqID.String())

		c.Request = c.Request.WithContext(ctx)

		defer func() {
			status := c.Writer.Status()
			span.SetAttribute("http.status_code", int64(status))
			if status >= 500 {
				span.SetAttribute("error", true)
				span.SetStatus(StatusError, strconv.Itoa(status))
			} else if span.Status == StatusUnset {
				span.SetStatus(StatusOk, "")
			}
			span.End()
		}()

		c.Next()
	}
}
