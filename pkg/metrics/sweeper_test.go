package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSweeperMetricsCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSweeperMetrics(reg)
	m.ObserveRun("unpaid-order-expiry", time.Second, nil)
	m.ObserveRun("unpaid-order-expiry", time.Second, errors.New("boom"))
	m.ObserveRun("", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("unpaid-order-expiry", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unpaid-order-expiry", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", "success")); got != 1 {
		t.Fatalf("expected unnamed job under unknown, got %f", got)
	}
	if count := testutil.CollectAndCount(m.duration); count != 2 {
		t.Fatalf("expected 2 histogram series, got %d", count)
	}
}

func TestSweeperMetricsCountsCycles(t *testing.T) {
	m := NewSweeperMetrics(prometheus.NewRegistry())
	m.ObserveCycle(true)
	m.ObserveCycle(false)
	m.ObserveCycle(false)

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("acquired")); got != 1 {
		t.Fatalf("expected 1 acquired cycle, got %f", got)
	}
	if got := testutil.ToFloat64(m.cycles.WithLabelValues("skipped")); got != 2 {
		t.Fatalf("expected 2 skipped cycles, got %f", got)
	}
}

func TestSweeperMetricsNilSafe(t *testing.T) {
	var m *SweeperMetrics
	m.ObserveRun("job", time.Second, nil)
	m.ObserveCycle(true)
	NewSweeperMetrics(nil).ObserveRun("job", time.Second, nil)
	NewSweeperMetrics(nil).ObserveCycle(false)
}
