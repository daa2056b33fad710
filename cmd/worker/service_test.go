package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type stubRunner struct {
	err   error
	calls int
}

func (r *stubRunner) Run(ctx context.Context) error {
	r.calls++
	return r.err
}

func okPing(context.Context) error { return nil }

func testParams(consumer runner) ServiceParams {
	return ServiceParams{
		Config:               &config.Config{},
		Logger:               logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DBPing:               okPing,
		RedisPing:            okPing,
		PubSubPing:           okPing,
		NotificationConsumer: consumer,
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	params := testParams(&stubRunner{})
	params.RedisPing = nil
	_, err := NewService(params)
	require.Error(t, err)

	params = testParams(nil)
	_, err = NewService(params)
	require.Error(t, err)
}

func TestRunFailsWhenDependencyDown(t *testing.T) {
	consumer := &stubRunner{}
	params := testParams(consumer)
	params.PubSubPing = func(context.Context) error { return errors.New("unreachable") }
	svc, err := NewService(params)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
	assert.Zero(t, consumer.calls)
}

func TestRunReturnsConsumerError(t *testing.T) {
	consumer := &stubRunner{err: errors.New("subscription gone")}
	svc, err := NewService(testParams(consumer))
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.EqualError(t, err, "subscription gone")
	assert.Equal(t, 1, consumer.calls)
}
