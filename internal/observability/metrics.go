package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the request pipeline.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authFailureTotal *prometheus.CounterVec
	roleDeniedTotal  prometheus.Counter
	rateLimitedTotal *prometheus.CounterVec
	registerer       prometheus.Registerer
}

// NewMetrics creates a new Metrics instance registered with the default
// registerer, so metrics are exposed on the /metrics endpoint.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom
// registerer. Useful for tests that want a private registry.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "crmgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total number of requests processed by the pipeline",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "request_duration_seconds",
			Help:      "Request processing duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method"},
	)

	m.authFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failure_total",
			Help:      "Total number of failed authentication attempts",
		},
		[]string{"reason"},
	)

	m.roleDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "role_denied_total",
			Help:      "Total number of requests rejected by role checks",
		},
	)

	m.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Total number of rate limited requests",
		},
		[]string{"path"},
	)

	// Register is used instead of MustRegister so duplicate registration
	// in tests is ignored. Descriptors are identical when re-registered.
	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.authFailureTotal,
		m.roleDeniedTotal,
		m.rateLimitedTotal,
	}
	for _, c := range collectors {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAuthFailure records a failed authentication attempt.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.authFailureTotal.WithLabelValues(reason).Inc()
}

// RecordRoleDenied records a request rejected by a role gate.
func (m *Metrics) RecordRoleDenied() {
	m.roleDeniedTotal.Inc()
}

// RecordRateLimited records a rate limited request.
func (m *Metrics) RecordRateLimited(path string) {
	m.rateLimitedTotal.WithLabelValues(path).Inc()
}

// MetricsHandler returns the HTTP handler serving the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
