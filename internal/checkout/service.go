package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentInitiator opens a gateway session for an existing order. It is
// called after the checkout transaction has committed.
type PaymentInitiator interface {
	Supports(method enums.PaymentMethod) bool
	CreateOnlinePayment(ctx context.Context, req payments.InitiateRequest) (*models.Payment, error)
}

type shipmentDispatcher interface {
	Dispatch(ctx context.Context, orderID uuid.UUID) (string, error)
}

type accessKeySigner interface {
	Sign(order models.Order) string
}

// Service converts a cart into an order.
type Service interface {
	Checkout(ctx context.Context, identity cart.Identity, req Request) (*Result, error)
}

// Customer is the contact snapshot stored on the order.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Request is everything checkout needs beyond the cart itself.
type Request struct {
	CartID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	Customer        Customer
	ShippingAddress types.Address
	Notes           *string
	ReturnURL       string
	// PaymentToken is the tokenized card for gateways that charge directly.
	PaymentToken string
	ClientIP     string
}

// Result describes a committed checkout. PaymentError and ShipmentError report
// post-commit work that failed; the order exists regardless.
type Result struct {
	Order         *models.Order
	Payment       *models.Payment
	State         State
	RedirectURL   string
	AccessKey     string
	TrackingRef   string
	PaymentError  error
	ShipmentError error
}

// Deps wires the checkout service. Payments and Shipments are optional; without
// them online methods are rejected and COD orders are not booked with a carrier.
type Deps struct {
	Tx                txRunner
	Carts             cart.Repository
	Orders            orders.Repository
	Ledger            inventory.Ledger
	Events            outboxPublisher
	Keys              accessKeySigner
	Payments          PaymentInitiator
	Shipments         shipmentDispatcher
	Metrics           *metrics.SettlementMetrics
	Logger            *logger.Logger
	OrderNumberPrefix string
	Steps             []Step
}

type service struct {
	tx        txRunner
	carts     cart.Repository
	orders    orders.Repository
	ledger    inventory.Ledger
	events    outboxPublisher
	keys      accessKeySigner
	payments  PaymentInitiator
	shipments shipmentDispatcher
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	prefix    string
	steps     []Step
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Keys == nil {
		return nil, fmt.Errorf("access key signer required")
	}
	steps := deps.Steps
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	prefix := strings.TrimSpace(deps.OrderNumberPrefix)
	if prefix == "" {
		prefix = "ORD"
	}
	return &service{
		tx:        deps.Tx,
		carts:     deps.Carts,
		orders:    deps.Orders,
		ledger:    deps.Ledger,
		events:    deps.Events,
		keys:      deps.Keys,
		payments:  deps.Payments,
		shipments: deps.Shipments,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		prefix:    prefix,
		steps:     steps,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Checkout(ctx context.Context, identity cart.Identity, req Request) (*Result, error) {
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, req.CartID.String())

	started := s.now()
	tc := &TxContext{
		Ctx:         ctx,
		Identity:    identity,
		Request:     req,
		OrderNumber: s.orderNumber(started),
		Now:         started,
		State:       StateStarted,
	}

	var failedStep string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tc.Tx = tx
		tc.Carts = s.carts.WithTx(tx)
		tc.Orders = s.orders.WithTx(tx)
		tc.Ledger = s.ledger.WithTx(tx)
		tc.Events = s.events

		var stepErr error
		failedStep, stepErr = runSteps(tc, s.steps)
		return stepErr
	})
	if err != nil {
		tc.State = StateAborted
		s.metrics.ObserveCheckout(req.PaymentMethod.String(), metrics.OutcomeAborted, time.Since(started))
		logCtx := s.logg.WithFields(ctx, map[string]any{"step": failedStep, "payment_method": req.PaymentMethod})
		s.logg.Warn(logCtx, "checkout aborted: "+err.Error())
		return nil, err
	}
	tc.State = StateCommitted
	s.metrics.ObserveCheckout(req.PaymentMethod.String(), metrics.OutcomeCommitted, time.Since(started))

	ctx = s.logg.WithOrderID(ctx, tc.Order.ID.String())
	s.logg.Info(ctx, "checkout committed")

	result := &Result{
		Order:   tc.Order,
		Payment: tc.Payment,
		State:   tc.State,
	}
	s.afterCommit(ctx, tc, result)

	if order, err := s.orders.FindByID(ctx, tc.Order.ID); err == nil {
		result.Order = order
	} else {
		tc.Order.Items = tc.OrderItems
		s.logg.Warn(ctx, "reload order after checkout: "+err.Error())
	}
	result.AccessKey = s.keys.Sign(*result.Order)
	return result, nil
}

// afterCommit runs the network calls that must never hold row locks. Their
// failures are reported on the result and logged.
func (s *service) afterCommit(ctx context.Context, tc *TxContext, result *Result) {
	order := tc.Order
	switch {
	case order.PaymentMethod.IsOnline():
		payment, err := s.payments.CreateOnlinePayment(ctx, payments.InitiateRequest{
			OrderID:     order.ID,
			ReturnURL:   tc.Request.ReturnURL,
			ClientIP:    tc.Request.ClientIP,
			SourceToken: tc.Request.PaymentToken,
		})
		if err != nil {
			result.PaymentError = err
			s.metrics.IncSideEffectFailure("payment_session")
			s.logg.Error(ctx, "create payment session after checkout", err)
			return
		}
		result.Payment = payment
		if payment.RedirectURL != nil {
			result.RedirectURL = *payment.RedirectURL
		}
	case order.PaymentMethod == enums.PaymentMethodCOD && order.OrderType.HasPhysical() && s.shipments != nil:
		ref, err := s.shipments.Dispatch(ctx, order.ID)
		if err != nil {
			result.ShipmentError = err
			s.metrics.IncSideEffectFailure("shipment")
			s.logg.Error(ctx, "create shipment after checkout", err)
			return
		}
		result.TrackingRef = ref
	}
}

func (s *service) validateRequest(req *Request) error {
	if req.CartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	if req.Customer.Name == "" || req.Customer.Email == "" || req.Customer.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name, email and phone are required")
	}
	if !req.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": req.PaymentMethod})
	}
	if req.PaymentMethod.IsOnline() && (s.payments == nil || !s.payments.Supports(req.PaymentMethod)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is not available").
			WithDetails(map[string]any{"payment_method": req.PaymentMethod})
	}
	return nil
}

// orderNumber is shareable with customers, so it carries no internal ids.
func (s *service) orderNumber(at time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return fmt.Sprintf("%s-%s-%s", s.prefix, at.Format("20060102"), random)
}
