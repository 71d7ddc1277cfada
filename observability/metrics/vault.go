package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	deposits      *prometheus.CounterVec
	withdrawals   *prometheus.CounterVec
	depositedWant *prometheus.CounterVec
	withdrawnWant *prometheus.CounterVec
	pricePerShare *prometheus.GaugeVec
	totalAssets   *prometheus.GaugeVec
	errors        *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "deposits_total",
				Help:      "Count of committed vault deposits.",
			}, []string{"vault"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "withdrawals_total",
				Help:      "Count of committed vault withdrawals.",
			}, []string{"vault"}),
			depositedWant: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "deposited_want_total",
				Help:      "Want tokens deposited, in base units.",
			}, []string{"vault"}),
			withdrawnWant: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "withdrawn_want_total",
				Help:      "Want tokens paid out, in base units.",
			}, []string{"vault"}),
			pricePerShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "price_per_share",
				Help:      "Want per share scaled to 1.0.",
			}, []string{"vault"}),
			totalAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "total_assets",
				Help:      "Idle plus deployed want, in base units.",
			}, []string{"vault"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cryptvault",
				Subsystem: "vault",
				Name:      "operation_errors_total",
				Help:      "Rejected vault operations by operation and error kind.",
			}, []string{"operation", "kind"}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.depositedWant,
			vaultRegistry.withdrawnWant,
			vaultRegistry.pricePerShare,
			vaultRegistry.totalAssets,
			vaultRegistry.errors,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) ObserveDeposit(vault string, amount float64) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(vault).Inc()
	m.depositedWant.WithLabelValues(vault).Add(amount)
}

func (m *VaultMetrics) ObserveWithdraw(vault string, payout float64) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(vault).Inc()
	m.withdrawnWant.WithLabelValues(vault).Add(payout)
}

func (m *VaultMetrics) SetPricePerShare(vault string, pps float64) {
	if m == nil {
		return
	}
	m.pricePerShare.WithLabelValues(vault).Set(pps)
}

func (m *VaultMetrics) SetTotalAssets(vault string, assets float64) {
	if m == nil {
		return
	}
	m.totalAssets.WithLabelValues(vault).Set(assets)
}

func (m *VaultMetrics) IncError(operation, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.errors.WithLabelValues(operation, kind).Inc()
}
