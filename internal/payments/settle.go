package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
)

// ProcessPaymentResult is the single funnel for gateway outcomes, whether
// they arrive on the buyer's return or as a notification. Applying the same
// result twice leaves the state of the first application.
func (s *service) ProcessPaymentResult(ctx context.Context, result gateways.Result) (*Outcome, error) {
	gateway := result.Gateway.String()
	if result.Ignored {
		s.metrics.IncSettlement(gateway, metrics.OutcomeIgnored)
		return &Outcome{Ignored: true}, nil
	}
	ctx = s.logg.WithGateway(ctx, gateway)

	orderNumber := strings.TrimSpace(result.OrderNumber)
	transactionID := strings.TrimSpace(result.TransactionID)
	if orderNumber == "" || transactionID == "" {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and transaction id required")
	}

	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.PaymentMethod != result.Gateway {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway does not match order payment method").
			WithDetails(map[string]any{"gateway": result.Gateway, "payment_method": order.PaymentMethod})
	}
	if diff := order.TotalAmount.Sub(result.Amount).Abs(); diff.GreaterThan(s.epsilon) {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		err := gateways.AmountMismatch(result.Gateway, order.TotalAmount, result.Amount)
		s.logg.Warn(s.logg.WithField(ctx, "transaction_id", transactionID), "payment amount mismatch rejected")
		return nil, err
	}
	if result.Currency != "" && result.Currency != order.Currency {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		s.logg.Warn(s.logg.WithField(ctx, "transaction_id", transactionID), "payment currency mismatch rejected")
		return nil, gateways.CurrencyMismatch(result.Gateway, order.Currency, result.Currency)
	}

	target := enums.PaymentStatusFailed
	if result.Success {
		target = enums.PaymentStatusCompleted
	}

	existing, err := s.orders.FindPayment(ctx, order.ID, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if existing != nil && existing.Status == target {
		s.metrics.IncSettlement(gateway, metrics.OutcomeReplayed)
		if paidAfterCancel(order, target) {
			return nil, refundRequired(order, existing)
		}
		return &Outcome{Order: order, Payment: existing, Replayed: true}, nil
	}

	outcome := &Outcome{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		locked, err := repo.LockByID(ctx, order.ID)
		if err != nil {
			return err
		}
		payment, err := repo.LockPayment(ctx, order.ID, transactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment")
		}
		if payment == nil {
			payment = &models.Payment{
				OrderID:           locked.ID,
				Gateway:           result.Gateway,
				PaymentMethodType: result.Gateway.Type(),
				TransactionID:     transactionID,
				Amount:            locked.TotalAmount,
				Currency:          locked.Currency,
				Status:            enums.PaymentStatusPending,
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
			}
		}
		outcome.Order = locked
		outcome.Payment = payment
		// a concurrent callback settled it between the read and the lock
		if payment.Status == target {
			outcome.Replayed = true
			return nil
		}
		return s.applyTransition(ctx, tx, repo, locked, payment, transition{
			next:          target,
			failureReason: result.Message,
		})
	})
	if err != nil {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRejected)
		return nil, err
	}
	if outcome.Replayed {
		s.metrics.IncSettlement(gateway, metrics.OutcomeReplayed)
		if paidAfterCancel(outcome.Order, target) {
			return nil, refundRequired(outcome.Order, outcome.Payment)
		}
		return outcome, nil
	}
	if paidAfterCancel(outcome.Order, target) {
		s.metrics.IncSettlement(gateway, metrics.OutcomeRefundRequired)
		err := refundRequired(outcome.Order, outcome.Payment)
		s.logg.Error(s.logg.WithField(ctx, "transaction_id", transactionID), "payment received for cancelled order", err)
		return nil, err
	}

	if target == enums.PaymentStatusCompleted {
		s.metrics.IncSettlement(gateway, metrics.OutcomeCompleted)
		s.logg.Info(ctx, "payment completed")
	} else {
		s.metrics.IncSettlement(gateway, metrics.OutcomeFailed)
		s.logg.Warn(s.logg.WithField(ctx, "reason", result.Message), "payment failed")
	}
	s.finish(ctx, outcome, target)
	return outcome, nil
}

// paidAfterCancel is a success that landed after the order was cancelled.
// The payment is recorded but nothing is confirmed or delivered.
func paidAfterCancel(order *models.Order, target enums.PaymentStatus) bool {
	return target == enums.PaymentStatusCompleted && order.Status == enums.OrderStatusCancelled
}

func refundRequired(order *models.Order, payment *models.Payment) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment received for a cancelled order, refund required").
		WithDetails(map[string]any{
			"order_id":       order.ID.String(),
			"payment_id":     payment.ID.String(),
			"transaction_id": payment.TransactionID,
		})
}

// UpdateStatus applies an admin edit through the same transition table and
// post-commit work as gateway results.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*Outcome, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"status": input.Status})
	}
	current, err := s.orders.FindPaymentByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, current.OrderID.String())
	if input.Actor != nil {
		ctx = s.logg.WithActorRole(ctx, input.Actor.Role)
	}

	outcome := &Outcome{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.LockByID(ctx, current.OrderID)
		if err != nil {
			return err
		}
		payment, err := repo.LockPaymentByID(ctx, input.PaymentID)
		if err != nil {
			return err
		}
		outcome.Order = order
		outcome.Payment = payment
		return s.applyTransition(ctx, tx, repo, order, payment, transition{
			next:          input.Status,
			failureReason: input.Reason,
			actor:         input.Actor,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncSettlement(current.Gateway.String(), "admin_"+input.Status.String())
	s.logg.Info(s.logg.WithField(ctx, "payment_status", input.Status), "payment status updated by admin")
	s.finish(ctx, outcome, input.Status)
	return outcome, nil
}

// finish reloads the order and runs the post-commit work for a payment that
// just completed. Failures are reported on the outcome only.
func (s *service) finish(ctx context.Context, outcome *Outcome, next enums.PaymentStatus) {
	if order, err := s.orders.FindByID(ctx, outcome.Order.ID); err == nil {
		outcome.Order = order
	} else {
		s.logg.Warn(ctx, "reload order after settlement: "+err.Error())
	}
	if next != enums.PaymentStatusCompleted || !outcome.Order.OrderType.HasDigital() {
		return
	}
	if outcome.Order.Status == enums.OrderStatusCancelled {
		s.logg.Warn(ctx, "payment completed on cancelled order, delivery skipped")
		return
	}

	var errs error
	if s.automation != nil {
		if err := s.automation.OnPaymentCompleted(ctx, outcome.Order.ID); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order automation"))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.PaymentCompleted(ctx, *outcome.Order); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment notification"))
		}
	}
	if errs != nil {
		outcome.SideEffectError = errs
		s.metrics.IncSideEffectFailure("payment_completed")
		s.logg.Error(ctx, "post-payment side effects failed", errs)
	}
}
