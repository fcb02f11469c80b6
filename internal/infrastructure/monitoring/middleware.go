package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Route template, not the raw URL, to keep cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Get response data
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())

		// Record metrics
		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures downstream call duration. A nil collector turns it
// into a plain stopwatch.
type Timer struct {
	start     time.Time
	metrics   *Metrics
	service   string
	operation string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, service, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		service:   service,
		operation: operation,
	}
}

// Stop records the elapsed duration under the given call status and
// returns it.
func (t *Timer) Stop(status string) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordDownstreamCall(t.service, t.operation, status, duration)
	}
	return duration
}
