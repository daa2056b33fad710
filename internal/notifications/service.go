package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
)

const (
	consumerPaymentCompleted = "notify:payment_completed"
	consumerDigitalDelivery  = "notify:digital_delivery"
)

type dedupeGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Confirm(ctx context.Context, consumer, eventID string) error
	Delete(ctx context.Context, consumer, eventID string) error
}

// Service sends buyer-facing e-mails. Each message is sent at most once per
// order while the dedupe marker lives.
type Service interface {
	PaymentCompleted(ctx context.Context, order models.Order) error
	DigitalDelivery(ctx context.Context, event payloads.DigitalDeliveryRequestedEvent) error
}

type service struct {
	mailer Mailer
	guard  dedupeGuard
	logg   *logger.Logger
}

// NewService wires the notifier. guard may be nil, in which case repeated
// calls send repeated mail.
func NewService(mailer Mailer, guard dedupeGuard, logg *logger.Logger) (Service, error) {
	if mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	return &service{mailer: mailer, guard: guard, logg: logg}, nil
}

func (s *service) PaymentCompleted(ctx context.Context, order models.Order) error {
	msg := Message{
		To:      order.CustomerEmail,
		ToName:  order.CustomerName,
		Subject: fmt.Sprintf("Payment received for order %s", order.OrderNumber),
		Text: fmt.Sprintf(
			"Hi %s,\n\nWe received your payment of %s %s for order %s.\n",
			order.CustomerName, order.TotalAmount.StringFixed(2), order.Currency, order.OrderNumber,
		),
	}
	return s.sendOnce(ctx, consumerPaymentCompleted, order.ID.String(), msg)
}

func (s *service) DigitalDelivery(ctx context.Context, event payloads.DigitalDeliveryRequestedEvent) error {
	msg := Message{
		To:      event.Email,
		Subject: fmt.Sprintf("Your downloads for order %s", event.OrderNumber),
		Text: fmt.Sprintf(
			"Your order %s is paid. %d digital item(s) are now available in your account.\n",
			event.OrderNumber, len(event.VariantIDs),
		),
	}
	return s.sendOnce(ctx, consumerDigitalDelivery, event.OrderID.String(), msg)
}

func (s *service) sendOnce(ctx context.Context, consumer, key string, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient e-mail missing")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"notification": consumer, "order_id": key})

	if s.guard != nil {
		already, err := s.guard.CheckAndMarkProcessed(ctx, consumer, key)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check notification marker")
		}
		if already {
			s.logg.Info(logCtx, "notification already sent")
			return nil
		}
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, consumer, key); delErr != nil {
				s.logg.Error(logCtx, "release notification marker", delErr)
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send notification")
	}
	if s.guard != nil {
		if err := s.guard.Confirm(ctx, consumer, key); err != nil {
			s.logg.Warn(logCtx, "confirm notification marker: "+err.Error())
		}
	}
	s.logg.Info(logCtx, "notification sent")
	return nil
}
