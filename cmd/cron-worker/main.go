package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopcore-backend/internal/cron"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/bootstrap"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config(), proc.Logger()

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	keys, err := orders.NewAccessKeys(cfg.Checkout.AccessKeySecret)
	proc.Must(err, "failed to configure order access keys")
	orderService, err := orders.NewService(ordersRepo, dbClient, inventory.NewLedger(gormDB), outbox.NewService(outboxRepo, logg), keys, logg)
	proc.Must(err, "failed to create order service")

	unpaidJob, err := cron.NewUnpaidOrderJob(cron.UnpaidOrderJobParams{
		Logger:    logg,
		Orders:    ordersRepo,
		Canceller: orderService,
		TTL:       cfg.Sweeper.UnpaidOrderTTL,
		BatchSize: cfg.Sweeper.ExpiryBatchSize,
	})
	proc.Must(err, "failed to create unpaid order job")

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:         logg,
		DB:             dbClient,
		Repository:     outboxRepo,
		Retention:      cfg.Sweeper.OutboxRetention,
		ParkedAttempts: cfg.Outbox.MaxAttempts,
		BatchSize:      cfg.Sweeper.OutboxPruneBatch,
	})
	proc.Must(err, "failed to create outbox retention job")

	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env, cfg.Sweeper.LockTTL)
	proc.Must(err, "failed to create sweeper lock")

	jobs, err := cron.NewRegistry(unpaidJob, retentionJob)
	proc.Must(err, "failed to register sweeper jobs")

	gatherer := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewSweeperMetrics(gatherer),
		Interval: cfg.Sweeper.Interval,

		// leave a margin so the lease is released before it can lapse
		CycleTimeout: cfg.Sweeper.LockTTL * 9 / 10,
	})
	proc.Must(err, "failed to create sweeper service")

	ctx, stop := proc.Context(map[string]any{
		"lockKey": lock.Key(),
		"jobs":    jobs.Names(),
	})
	defer stop()

	proc.ServeMetrics(ctx, gatherer)
	proc.Run(ctx, service.Run)
}
