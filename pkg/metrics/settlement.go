package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the checkout and settlement counters.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeIgnored   = "ignored"

	OutcomeRefundRequired = "refund_required"
)

// SettlementMetrics records checkout and payment settlement activity.
type SettlementMetrics struct {
	checkoutDuration  *prometheus.HistogramVec
	checkouts         *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	sideEffectFailure *prometheus.CounterVec
}

// NewSettlementMetrics registers the metrics on the provided registerer. A nil
// registerer yields a recorder whose methods do nothing.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"payment_method", "outcome"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_total",
		Help: "Gateway results processed by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	sideEffectFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "post_commit_failure_total",
		Help: "Post-commit side effects that failed after the order or payment committed.",
	}, []string{"effect"})
	reg.MustRegister(checkoutDuration, checkouts, settlements, sideEffectFailure)
	return &SettlementMetrics{
		checkoutDuration:  checkoutDuration,
		checkouts:         checkouts,
		settlements:       settlements,
		sideEffectFailure: sideEffectFailure,
	}
}

// ObserveCheckout counts one checkout and records how long its transaction took.
func (m *SettlementMetrics) ObserveCheckout(paymentMethod, outcome string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.checkouts.WithLabelValues(normalizeLabel(paymentMethod), outcome).Inc()
	m.checkoutDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *SettlementMetrics) IncSettlement(gateway, outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncSideEffectFailure(effect string) {
	if m == nil || m.sideEffectFailure == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(normalizeLabel(effect)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
