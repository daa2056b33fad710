package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Publish results recorded by the outbox publisher.
const (
	PublishPublished    = "published"
	PublishRetry        = "retry"
	PublishDeadLettered = "dead_lettered"
	PublishDeferred     = "deferred"
)

// OutboxMetrics records what the outbox publisher does with each row it claims.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	claimed prometheus.Histogram
}

// NewOutboxMetrics registers the publisher metrics. A nil registerer yields a
// recorder whose methods do nothing.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher by event type and result.",
	}, []string{"event_type", "result"})
	claimed := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_rows",
		Help:    "Rows claimed per publisher batch.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(events, claimed)
	return &OutboxMetrics{events: events, claimed: claimed}
}

func (m *OutboxMetrics) IncEvent(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil || m.claimed == nil {
		return
	}
	m.claimed.Observe(float64(rows))
}
