package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one service process.
//
// Each Metrics instance owns its own registry so that the gateway and
// the user service can live in the same test binary without colliding
// on metric registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Downstream call metrics
	DownstreamCalls    *prometheus.CounterVec
	DownstreamDuration *prometheus.HistogramVec
	DownstreamErrors   *prometheus.CounterVec

	// User lookup metrics
	LookupsTotal *prometheus.CounterVec

	startTime time.Time

	// Aggregates surfaced by the health endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds aggregate request values for the health
// endpoint's JSON body.
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// AverageLatency returns the mean request duration served so far.
func (s MetricsSnapshot) AverageLatency() time.Duration {
	if s.RequestCount == 0 {
		return 0
	}
	return time.Duration(s.TotalDuration / float64(s.RequestCount) * float64(time.Second))
}

// NewMetrics creates a new metrics collector. The service name becomes
// the metric namespace, e.g. gateway_http_requests_total.
func NewMetrics(service string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: service,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: service,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: service,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: service,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Downstream call metrics
		DownstreamCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: service,
				Name:      "downstream_calls_total",
				Help:      "Total number of downstream service calls",
			},
			[]string{"service", "operation", "status"},
		),
		DownstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: service,
				Name:      "downstream_duration_seconds",
				Help:      "Downstream call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "operation"},
		),
		DownstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: service,
				Name:      "downstream_errors_total",
				Help:      "Total number of downstream call errors",
			},
			[]string{"service", "operation", "error_type"},
		),

		// User lookup metrics
		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: service,
				Name:      "user_lookups_total",
				Help:      "Total number of user store lookups",
			},
			[]string{"found"},
		),
	}

	// Uptime computed on scrape rather than by a background updater.
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: service,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	))

	return m
}

// Registry returns the registry backing this collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDownstreamCall records a call to another service
func (m *Metrics) RecordDownstreamCall(service, operation, status string, duration time.Duration) {
	m.DownstreamCalls.WithLabelValues(service, operation, status).Inc()
	m.DownstreamDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDownstreamError records a downstream call error
func (m *Metrics) RecordDownstreamError(service, operation, errorType string) {
	m.DownstreamErrors.WithLabelValues(service, operation, errorType).Inc()
}

// RecordLookup records a user store lookup
func (m *Metrics) RecordLookup(found bool) {
	if found {
		m.LookupsTotal.WithLabelValues("true").Inc()
	} else {
		m.LookupsTotal.WithLabelValues("false").Inc()
	}
}

// Snapshot returns the current aggregate request counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
