package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
)

const deliveryConsumer = "fulfillment-mailer"

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type eventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Confirm(ctx context.Context, consumer, eventID string) error
	Delete(ctx context.Context, consumer, eventID string) error
}

// Consumer reads digital delivery requests from the fulfillment subscription
// and mails the buyer.
type Consumer struct {
	notifier     Service
	subscription *pubsub.Subscriber
	decoders     payloadDecoder
	idempotency  eventGuard
	logg         *logger.Logger
}

// NewConsumer builds the fulfillment mail consumer.
func NewConsumer(notifier Service, subscription *pubsub.Subscriber, decoders payloadDecoder, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("fulfillment subscription required")
	}
	if decoders == nil {
		return nil, fmt.Errorf("payload decoders required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     notifier,
		subscription: subscription,
		decoders:     decoders,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventDigitalDeliveryRequested) {
		c.logg.Info(logCtx, "skipping non-delivery event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if envelope.EventID == "" {
		c.logg.Warn(logCtx, "envelope without event id")
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, deliveryConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventDigitalDeliveryRequested, envelope.Version, envelope.Data)
	if err != nil {
		// a newer producer may be live; leave it for a worker that knows the version
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, deliveryConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	payload, ok := decoded.(payloads.DigitalDeliveryRequestedEvent)
	if !ok {
		c.logg.Warn(logCtx, fmt.Sprintf("unexpected payload type %T", decoded))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())
	if err := c.notifier.DigitalDelivery(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "delivery mail failed", err)
		_ = c.idempotency.Delete(ctx, deliveryConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	if err := c.idempotency.Confirm(ctx, deliveryConsumer, envelope.EventID); err != nil {
		c.logg.Warn(logCtx, "confirm delivery marker: "+err.Error())
	}
	return processResult{ack: true}
}
