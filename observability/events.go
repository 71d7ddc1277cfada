package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cryptvault/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry counting committed engine events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed vault and strategy events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// CountingEmitter is an events.Emitter that records every event it sees.
type CountingEmitter struct{}

// Emit implements events.Emitter.
func (CountingEmitter) Emit(e events.Event) {
	if e == nil {
		return
	}
	Events().Record(e.EventType())
}
