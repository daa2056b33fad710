package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

// State marks how far an in-flight checkout got before it committed or
// aborted.
type State string

const (
	StateStarted       State = "started"
	StateLocked        State = "locked"
	StateValidated     State = "validated"
	StateCreated       State = "created"
	StateStockDeducted State = "stock_deducted"
	StatePaymentOpened State = "payment_opened"
	StateCommitted     State = "committed"
	StateAborted       State = "aborted"
)

// Step names used by DefaultSteps.
const (
	StepLockCart               = "lock_cart"
	StepLockItems              = "lock_items"
	StepLockVariants           = "lock_variants"
	StepValidatePaymentMethod  = "validate_payment_method"
	StepValidateShippingMethod = "validate_shipping_method"
	StepCreateOrder            = "create_order"
	StepCreateOrderItems       = "create_order_items"
	StepDeductStock            = "deduct_stock"
	StepOpenPayment            = "open_payment"
	StepEmitOrderCreated       = "emit_order_created"
	StepClearCart              = "clear_cart"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Step is one named unit of the settlement transaction. When Run succeeds and
// Enters is set, the context moves to that state.
type Step struct {
	Name   string
	Enters State
	Run    func(tc *TxContext) error
}

// TxContext carries the transaction, the storage ports bound to it and
// everything the steps have read or written so far.
type TxContext struct {
	Ctx         context.Context
	Tx          *gorm.DB
	Identity    cart.Identity
	Request     Request
	OrderNumber string
	Now         time.Time

	Carts  cart.Repository
	Orders orders.Repository
	Ledger inventory.Ledger
	Events outboxPublisher

	State          State
	Cart           *models.CartHeader
	Items          []models.CartItem
	Variants       map[uuid.UUID]models.ProductVariant
	Products       map[uuid.UUID]models.Product
	OrderType      enums.OrderType
	ShippingMethod *models.ShippingMethod
	Order          *models.Order
	OrderItems     []models.OrderItem
	Payment        *models.Payment
}

// DefaultSteps is the standard cart-to-order sequence. Callers may insert
// their own steps, but the cart and its items must be locked before variants.
func DefaultSteps() []Step {
	return []Step{
		{Name: StepLockCart, Run: lockCart},
		{Name: StepLockItems, Run: lockItems},
		{Name: StepLockVariants, Enters: StateLocked, Run: lockVariants},
		{Name: StepValidatePaymentMethod, Run: validatePaymentMethod},
		{Name: StepValidateShippingMethod, Enters: StateValidated, Run: validateShippingMethod},
		{Name: StepCreateOrder, Run: createOrder},
		{Name: StepCreateOrderItems, Enters: StateCreated, Run: createOrderItems},
		{Name: StepDeductStock, Enters: StateStockDeducted, Run: deductStock},
		{Name: StepOpenPayment, Run: openPayment},
		{Name: StepEmitOrderCreated, Run: emitOrderCreated},
		{Name: StepClearCart, Run: clearCart},
	}
}

// runSteps stops at the first failing step and marks the context aborted. The
// caller's transaction rolls back with the returned error.
func runSteps(tc *TxContext, steps []Step) (string, error) {
	for _, step := range steps {
		if step.Run == nil {
			continue
		}
		if err := step.Run(tc); err != nil {
			tc.State = StateAborted
			return step.Name, err
		}
		if step.Enters != "" {
			tc.State = step.Enters
		}
	}
	return "", nil
}
