package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records runs of the background sweeper jobs.
type SweeperMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	cycles   *prometheus.CounterVec
}

// NewSweeperMetrics registers the sweeper metrics. A nil registerer yields a
// recorder whose methods do nothing.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweeper_job_duration_seconds",
		Help:    "Duration of sweeper jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_job_runs_total",
		Help: "Sweeper job runs by result.",
	}, []string{"job", "result"})
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_cycles_total",
		Help: "Sweeper cycles by whether this replica held the lock.",
	}, []string{"lock"})
	reg.MustRegister(duration, runs, cycles)
	return &SweeperMetrics{duration: duration, runs: runs, cycles: cycles}
}

// ObserveRun records one job run. A nil err counts as success.
func (m *SweeperMetrics) ObserveRun(job string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.runs.WithLabelValues(job, result).Inc()
}

// ObserveCycle counts one cycle attempt; acquired is false when another
// replica held the lock.
func (m *SweeperMetrics) ObserveCycle(acquired bool) {
	if m == nil || m.cycles == nil {
		return
	}
	label := "acquired"
	if !acquired {
		label = "skipped"
	}
	m.cycles.WithLabelValues(label).Inc()
}
