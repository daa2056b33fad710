// Package automation reacts to completed payments for orders that carry
// digital goods.
package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service queues the fulfillment of digital lines.
type Service interface {
	// OnPaymentCompleted is safe to call any number of times per order.
	OnPaymentCompleted(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	tx     txRunner
	orders orders.Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(tx txRunner, repo orders.Repository, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{tx: tx, orders: repo, outbox: publisher, logg: logg}, nil
}

func (s *service) OnPaymentCompleted(ctx context.Context, orderID uuid.UUID) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	queued := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.OrderType.HasDigital() || order.PaymentStatus != enums.OrderPaymentStatusPaid {
			return nil
		}
		variantIDs := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			if item.IsDigital {
				variantIDs = append(variantIDs, item.VariantID)
			}
		}
		if len(variantIDs) == 0 {
			return nil
		}
		queued = true
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDigitalDeliveryRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.DigitalDeliveryRequestedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Email:       order.CustomerEmail,
				VariantIDs:  variantIDs,
			},
		})
	})
	if err != nil {
		return err
	}
	if queued {
		s.logg.Info(ctx, "digital delivery requested")
	}
	return nil
}
