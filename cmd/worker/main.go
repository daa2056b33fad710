package main

import (
	"context"

	"github.com/angelmondragon/shopcore-backend/internal/notifications"
	"github.com/angelmondragon/shopcore-backend/pkg/bootstrap"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("worker")
	cfg, logg := proc.Config(), proc.Logger()

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())
	pubsubClient := proc.PubSub(context.Background())

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.NotificationMarkerTTL)
	proc.Must(err, "failed to create idempotency manager")

	mailer, err := deliveryMailer(cfg, logg)
	proc.Must(err, "failed to configure sendgrid")

	notifier, err := notifications.NewService(mailer, guard, logg)
	proc.Must(err, "failed to create notification service")

	consumer, err := notifications.NewConsumer(notifier, pubsubClient.FulfillmentSubscription(), registry.NewPayloadDecoders(), guard, logg)
	proc.Must(err, "failed to create fulfillment consumer")

	service, err := NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DBPing:               dbClient.Ping,
		RedisPing:            redisClient.Ping,
		PubSubPing:           pubsubClient.Ping,
		NotificationConsumer: consumer,
	})
	proc.Must(err, "failed to create worker service")

	ctx, stop := proc.Context(nil)
	defer stop()
	proc.Run(ctx, service.Run)
}

// deliveryMailer sends through sendgrid when a key is configured. A worker
// without one still consumes events and writes the mail to the log.
func deliveryMailer(cfg *config.Config, logg *logger.Logger) (notifications.Mailer, error) {
	if cfg.Sendgrid.APIKey == "" {
		logg.Warn(context.Background(), "sendgrid not configured, delivery mail goes to the log")
		return notifications.NewLogMailer(logg), nil
	}
	mailer, err := notifications.NewSendgridMailer(cfg.Sendgrid, logg)
	if err != nil {
		return nil, err
	}
	return mailer, nil
}
