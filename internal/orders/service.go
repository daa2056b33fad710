package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order reads and the cancellation workflow.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForOwner(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error)
	GetByAccessLink(ctx context.Context, orderNumber, accessKey string) (*models.Order, error)
	AccessKey(order models.Order) string
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

// CancelInput identifies the order and who asked for the cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   *outbox.ActorRef

	// OnlyIfUnpaid limits the cancellation to pending orders that have not
	// been paid, checked under the order lock.
	OnlyIfUnpaid bool
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger inventory.Ledger
	outbox outboxPublisher
	keys   *AccessKeys
	logg   *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledger inventory.Ledger, outbox outboxPublisher, keys *AccessKeys, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if keys == nil {
		return nil, fmt.Errorf("access keys required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		ledger: ledger,
		outbox: outbox,
		keys:   keys,
		logg:   logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *service) GetForOwner(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !identity.Owns(order.OwnerKey) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

// GetByAccessLink is the only unauthenticated read path. A wrong key and an
// unknown order number fail the same way.
func (s *service) GetByAccessLink(ctx context.Context, orderNumber, accessKey string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" || strings.TrimSpace(accessKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and access key required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if !s.keys.Verify(*order, accessKey) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) AccessKey(order models.Order) string {
	return s.keys.Sign(order)
}

// Cancel restores stock for every line and marks the order cancelled in one
// transaction. Variants are incremented in ascending id order.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order in status %s cannot be cancelled", order.Status)).
				WithDetails(map[string]any{
					"order_id": order.ID.String(),
					"status":   order.Status,
				})
		}
		if input.OnlyIfUnpaid && !isUnpaid(order) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order settled before it could be expired").
				WithDetails(map[string]any{
					"order_id":       order.ID.String(),
					"status":         order.Status,
					"payment_status": order.PaymentStatus,
				})
		}

		items, err := repo.LockItems(ctx, order.ID)
		if err != nil {
			return err
		}
		restock := map[uuid.UUID]int{}
		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			if _, ok := restock[item.VariantID]; !ok {
				ids = append(ids, item.VariantID)
			}
			restock[item.VariantID] += item.Quantity
		}
		ordered := inventory.SortIDs(ids)
		if _, err := ledger.LockVariants(ctx, ordered); err != nil {
			return err
		}
		for _, variantID := range ordered {
			if err := ledger.Increment(ctx, variantID, restock[variantID]); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderCanceledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CanceledAt:  now,
				Reason:      strings.TrimSpace(input.Reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, result.ID.String())
	s.logg.Info(logCtx, "order cancelled")
	return result, nil
}

func isUnpaid(order *models.Order) bool {
	if order.Status != enums.OrderStatusPending {
		return false
	}
	return order.PaymentStatus == enums.OrderPaymentStatusPending || order.PaymentStatus == enums.OrderPaymentStatusFailed
}
