package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StrategyMetrics struct {
	harvests *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	profit   *prometheus.CounterVec
	fees     *prometheus.CounterVec
	apr      *prometheus.GaugeVec
	state    *prometheus.GaugeVec
	errors   *prometheus.CounterVec
	lastTick *prometheus.GaugeVec
}

var (
	strategyOnce     sync.Once
	strategyRegistry *StrategyMetrics
)

func Strategy() *StrategyMetrics {
	strategyOnce.Do(func() {
		strategyRegistry = &StrategyMetrics{
			harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "harvests_total",
				Help:      "Committed harvests, labelled by whether the log entry was coalesced.",
			}, []string{"strategy", "coalesced"}),
			skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "harvests_skipped_total",
				Help:      "Keeper ticks that did not harvest, by reason.",
			}, []string{"strategy", "reason"}),
			profit: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "harvest_profit_total",
				Help:      "Gross harvest profit in want base units.",
			}, []string{"strategy"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "harvest_fees_total",
				Help:      "Harvest fees paid by recipient leg.",
			}, []string{"strategy", "leg"}),
			apr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "apr_bps",
				Help:      "Average APR over the retained harvest log in basis points.",
			}, []string{"strategy"}),
			state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "state",
				Help:      "Lifecycle state (0 active, 1 paused, 2 panicked, 3 retired).",
			}, []string{"strategy"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "operation_errors_total",
				Help:      "Rejected strategy operations by operation and error kind.",
			}, []string{"operation", "kind"}),
			lastTick: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cryptvault",
				Subsystem: "strategy",
				Name:      "last_harvest_timestamp_seconds",
				Help:      "Unix time of the newest harvest log entry.",
			}, []string{"strategy"}),
		}
		prometheus.MustRegister(
			strategyRegistry.harvests,
			strategyRegistry.skipped,
			strategyRegistry.profit,
			strategyRegistry.fees,
			strategyRegistry.apr,
			strategyRegistry.state,
			strategyRegistry.errors,
			strategyRegistry.lastTick,
		)
	})
	return strategyRegistry
}

func (m *StrategyMetrics) ObserveHarvest(strategy string, coalesced bool, profit, treasury, strategist, call float64, timestamp int64) {
	if m == nil {
		return
	}
	label := "false"
	if coalesced {
		label = "true"
	}
	m.harvests.WithLabelValues(strategy, label).Inc()
	m.profit.WithLabelValues(strategy).Add(profit)
	m.fees.WithLabelValues(strategy, "treasury").Add(treasury)
	m.fees.WithLabelValues(strategy, "strategist").Add(strategist)
	m.fees.WithLabelValues(strategy, "call").Add(call)
	m.lastTick.WithLabelValues(strategy).Set(float64(timestamp))
}

func (m *StrategyMetrics) IncSkipped(strategy, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.skipped.WithLabelValues(strategy, reason).Inc()
}

func (m *StrategyMetrics) SetAPR(strategy string, bps int64) {
	if m == nil {
		return
	}
	m.apr.WithLabelValues(strategy).Set(float64(bps))
}

func (m *StrategyMetrics) SetState(strategy string, state int) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(strategy).Set(float64(state))
}

func (m *StrategyMetrics) IncError(operation, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.errors.WithLabelValues(operation, kind).Inc()
}
