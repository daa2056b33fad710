package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

func newTestProcess() *Process {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return &Process{name: "test", cfg: cfg, logg: logger.New(logger.Options{ServiceName: "test"})}
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	prev := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = prev })
	return &code
}

func TestCloseRunsNewestFirstAndKeepsGoing(t *testing.T) {
	p := newTestProcess()
	var order []string
	p.OnClose("db", func() error { order = append(order, "db"); return nil })
	p.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("boom") })
	p.OnClose("pubsub", func() error { order = append(order, "pubsub"); return nil })

	p.Close()
	assert.Equal(t, []string{"pubsub", "redis", "db"}, order)

	p.Close()
	assert.Len(t, order, 3, "closers run once")
}

func TestMustExitsAfterClosing(t *testing.T) {
	code := stubExit(t)
	p := newTestProcess()
	closed := false
	p.OnClose("db", func() error { closed = true; return nil })

	p.Must(nil, "unused")
	assert.Equal(t, -1, *code)
	assert.False(t, closed)

	p.Must(errors.New("dial tcp: refused"), "failed to bootstrap redis")
	assert.Equal(t, 1, *code)
	assert.True(t, closed)
}

func TestRunTreatsCancellationAsGraceful(t *testing.T) {
	code := stubExit(t)
	p := newTestProcess()
	closed := 0
	p.OnClose("db", func() error { closed++; return nil })

	p.Run(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, -1, *code)
	assert.Equal(t, 1, closed)
}

func TestRunExitsOnFailure(t *testing.T) {
	code := stubExit(t)
	p := newTestProcess()

	p.Run(context.Background(), func(context.Context) error { return errors.New("subscriber gone") })
	assert.Equal(t, 1, *code)
}

func TestServeMetricsWithoutPortDoesNothing(t *testing.T) {
	t.Setenv("PORT", "")
	p := newTestProcess()
	p.ServeMetrics(context.Background(), prometheus.NewRegistry())
	assert.Empty(t, p.closers)
}

func TestContextCancelsOnStop(t *testing.T) {
	p := newTestProcess()
	ctx, stop := p.Context(map[string]any{"jobs": []string{"unpaid_orders"}})
	require.NoError(t, ctx.Err())
	stop()
	assert.Error(t, ctx.Err())
}
