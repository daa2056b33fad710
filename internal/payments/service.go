// Package payments owns the payment lifecycle. Every change to
// payments.status goes through Service so the transition table, the order
// side of settlement and the post-commit work stay in one place.
package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type adapterSource interface {
	Get(name enums.PaymentMethod) (gateways.Adapter, error)
	Supports(name enums.PaymentMethod) bool
}

type completionAutomation interface {
	OnPaymentCompleted(ctx context.Context, orderID uuid.UUID) error
}

type completionNotifier interface {
	PaymentCompleted(ctx context.Context, order models.Order) error
}

// replayGuard filters duplicate provider notifications before they reach the
// database. CheckAndMarkProcessed claims an id and reports true for one already
// claimed; Confirm keeps the claim once the result is settled.
type replayGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Confirm(ctx context.Context, consumer, eventID string) error
	Delete(ctx context.Context, consumer, eventID string) error
}

// Service settles gateway results and admin edits against orders.
type Service interface {
	Supports(method enums.PaymentMethod) bool
	CreateOnlinePayment(ctx context.Context, req InitiateRequest) (*models.Payment, error)
	ProcessPaymentResult(ctx context.Context, result gateways.Result) (*Outcome, error)
	VerifyReturn(ctx context.Context, gateway enums.PaymentMethod, params url.Values) (*Outcome, error)
	HandleWebhook(ctx context.Context, gateway enums.PaymentMethod, payload []byte, headers http.Header) (gateways.Ack, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*Outcome, error)
	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
}

// InitiateRequest asks for a gateway session against an existing order.
type InitiateRequest struct {
	OrderID   uuid.UUID
	ReturnURL string
	ClientIP  string
	// SourceToken is the tokenized card for gateways that charge directly.
	SourceToken string
}

// UpdateStatusInput is an admin edit of a single payment.
type UpdateStatusInput struct {
	PaymentID uuid.UUID
	Status    enums.PaymentStatus
	Reason    string
	Actor     *outbox.ActorRef
}

// Outcome is the state after a result or edit was applied. Replayed is set
// when nothing changed because the same result was already recorded.
// SideEffectError reports post-commit work that failed; the settlement
// itself stands.
type Outcome struct {
	Order           *models.Order
	Payment         *models.Payment
	Replayed        bool
	Ignored         bool
	SideEffectError error
}

// Deps wires the service. Automation, Notifier and Replay are optional.
type Deps struct {
	Tx            txRunner
	Orders        orders.Repository
	Gateways      adapterSource
	Events        outboxPublisher
	Automation    completionAutomation
	Notifier      completionNotifier
	Replay        replayGuard
	Metrics       *metrics.SettlementMetrics
	Logger        *logger.Logger
	Epsilon       decimal.Decimal
	ReturnBaseURL string
}

type service struct {
	tx         txRunner
	orders     orders.Repository
	gateways   adapterSource
	events     outboxPublisher
	automation completionAutomation
	notifier   completionNotifier
	replay     replayGuard
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	epsilon    decimal.Decimal
	returnBase string
	now        func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Epsilon.IsNegative() {
		return nil, fmt.Errorf("amount epsilon must not be negative")
	}
	return &service{
		tx:         deps.Tx,
		orders:     deps.Orders,
		gateways:   deps.Gateways,
		events:     deps.Events,
		automation: deps.Automation,
		notifier:   deps.Notifier,
		replay:     deps.Replay,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		epsilon:    deps.Epsilon,
		returnBase: strings.TrimRight(strings.TrimSpace(deps.ReturnBaseURL), "/"),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	return s.orders.FindPaymentByID(ctx, paymentID)
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.orders.ListPayments(ctx, orderID)
}
