package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EndpointMetrics tracks the HTTP surface of the vault daemon.
type EndpointMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	endpointMetricsOnce sync.Once
	endpointRegistry    *EndpointMetrics
)

// Endpoints returns the lazily-initialised endpoint metrics registry.
func Endpoints() *EndpointMetrics {
	endpointMetricsOnce.Do(func() {
		endpointRegistry = &EndpointMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route, method and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cryptvault",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			endpointRegistry.requests,
			endpointRegistry.errors,
			endpointRegistry.latency,
			endpointRegistry.throttles,
		)
	})
	return endpointRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *EndpointMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *EndpointMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}
