package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
)

// transition is one payment status change together with the provider data
// that came with it.
type transition struct {
	next          enums.PaymentStatus
	failureReason string
	actor         *outbox.ActorRef
}

// checkTransition rejects edges missing from the payment status table.
func checkTransition(from, to enums.PaymentStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	allowed := from.AllowedTransitions()
	names := make([]string, 0, len(allowed))
	for _, status := range allowed {
		names = append(names, status.String())
	}
	listed := strings.Join(names, ", ")
	if listed == "" {
		listed = "none"
	}
	return pkgerrors.New(pkgerrors.CodeConflict,
		fmt.Sprintf("illegal payment transition %s -> %s (allowed: %s)", from, to, listed)).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": allowed,
		})
}

// applyTransition moves a locked payment and its locked order inside tx. It
// is the only writer of payments.status after a payment is opened.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, payment *models.Payment, change transition) error {
	if err := checkTransition(payment.Status, change.next); err != nil {
		return err
	}
	now := s.now()

	paymentUpdates := map[string]any{"status": change.next}
	switch change.next {
	case enums.PaymentStatusCompleted:
		paymentUpdates["paid_at"] = now
		paymentUpdates["failure_reason"] = nil
		payment.PaidAt = &now
		payment.FailureReason = nil
	case enums.PaymentStatusFailed:
		reason := strings.TrimSpace(change.failureReason)
		if reason == "" {
			reason = "payment failed"
		}
		paymentUpdates["failure_reason"] = reason
		payment.FailureReason = &reason
	}
	if err := repo.UpdatePayment(ctx, payment.ID, paymentUpdates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
	}
	payment.Status = change.next

	if orderUpdates := orderUpdatesFor(order, change.next, now); len(orderUpdates) > 0 {
		if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order after payment")
		}
		applyOrderUpdates(order, orderUpdates)
	}

	return s.emitTransition(ctx, tx, order, payment, change)
}

// orderUpdatesFor derives the order columns a payment status change implies.
// A completed payment confirms a pending order; orders past pending keep
// their status. Digital-only orders have nothing to ship and are delivered
// on payment. A failed payment never touches the order status, and an
// attempt that fails or reopens after another one paid the order leaves the
// order's payment status alone.
func orderUpdatesFor(order *models.Order, next enums.PaymentStatus, now time.Time) map[string]any {
	updates := map[string]any{}
	settled := order.PaymentStatus == enums.OrderPaymentStatusPaid || order.PaymentStatus == enums.OrderPaymentStatusRefunded
	switch next {
	case enums.PaymentStatusCompleted:
		updates["payment_status"] = enums.OrderPaymentStatusPaid
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusConfirmed
			updates["confirmed_at"] = now
		}
		if order.OrderType == enums.OrderTypeDigital && order.Status.IsCancellable() {
			updates["status"] = enums.OrderStatusDelivered
			updates["shipping_status"] = enums.ShippingStatusDelivered
			updates["delivered_at"] = now
			if order.ConfirmedAt == nil {
				updates["confirmed_at"] = now
			}
		}
	case enums.PaymentStatusFailed:
		if !settled {
			updates["payment_status"] = enums.OrderPaymentStatusFailed
		}
	case enums.PaymentStatusRefunded:
		updates["payment_status"] = enums.OrderPaymentStatusRefunded
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing:
		if !settled {
			updates["payment_status"] = enums.OrderPaymentStatusPending
		}
	}
	return updates
}

func applyOrderUpdates(order *models.Order, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "payment_status":
			order.PaymentStatus = value.(enums.OrderPaymentStatus)
		case "status":
			order.Status = value.(enums.OrderStatus)
		case "shipping_status":
			order.ShippingStatus = value.(enums.ShippingStatus)
		case "confirmed_at":
			at := value.(time.Time)
			order.ConfirmedAt = &at
		case "delivered_at":
			at := value.(time.Time)
			order.DeliveredAt = &at
		}
	}
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, change transition) error {
	status := payloads.PaymentStatusEvent{
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		Gateway:       payment.Gateway,
		TransactionID: payment.TransactionID,
		Status:        payment.Status,
	}
	switch {
	case change.next == enums.PaymentStatusCompleted && order.Status == enums.OrderStatusCancelled:
		// a cancelled order already released its stock and is owed a refund
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefundRequired,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         change.actor,
			Data:          status,
		})
	case change.next == enums.PaymentStatusCompleted:
		paidAt := s.now()
		if payment.PaidAt != nil {
			paidAt = *payment.PaidAt
		}
		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         change.actor,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				PaymentID:     payment.ID,
				Gateway:       payment.Gateway,
				TransactionID: payment.TransactionID,
				Amount:        payment.Amount,
				PaidAt:        paidAt,
			},
		})
	case change.next == enums.PaymentStatusFailed:
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         change.actor,
			Data:          status,
		})
	case change.next == enums.PaymentStatusRefunded:
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         change.actor,
			Data:          status,
		})
	}
	return nil
}
