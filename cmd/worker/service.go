package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DBPing               pinger
	RedisPing            pinger
	PubSubPing           pinger
	NotificationConsumer runner
	HeartbeatInterval    time.Duration
}

// Service runs the fulfillment consumers until the context ends.
type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	pings                []namedPing
	notificationConsumer runner
	heartbeat            time.Duration
}

type namedPing struct {
	name string
	fn   pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DBPing == nil {
		return nil, errors.New("database client is required")
	}
	if params.RedisPing == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSubPing == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	heartbeat := params.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = time.Minute
	}
	return &Service{
		cfg:  params.Config,
		logg: params.Logger,
		pings: []namedPing{
			{name: "database", fn: params.DBPing},
			{name: "redis", fn: params.RedisPing},
			{name: "pubsub", fn: params.PubSubPing},
		},
		notificationConsumer: params.NotificationConsumer,
		heartbeat:            heartbeat,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.pings {
		if err := dep.fn(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.notificationConsumer.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
			}
			return err
		case <-ticker.C:
			s.logg.Info(ctx, "worker heartbeat")
		}
	}
}
