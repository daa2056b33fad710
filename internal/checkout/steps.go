package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

func lockCart(tc *TxContext) error {
	header, err := tc.Carts.LockHeader(tc.Ctx, tc.Request.CartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
	}
	if err := ValidateOwnership(header, tc.Identity); err != nil {
		return err
	}
	tc.Cart = header
	return nil
}

func lockItems(tc *TxContext) error {
	items, err := tc.Carts.LockItems(tc.Ctx, tc.Cart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart items")
	}
	if err := ValidateNonEmpty(items); err != nil {
		return err
	}
	tc.Items = items
	return nil
}

func lockVariants(tc *TxContext) error {
	variantIDs := make([]uuid.UUID, 0, len(tc.Items))
	for _, item := range tc.Items {
		variantIDs = append(variantIDs, item.VariantID)
	}
	variants, err := tc.Ledger.LockVariants(tc.Ctx, variantIDs)
	if err != nil {
		return err
	}

	productIDs := make([]uuid.UUID, 0, len(variants))
	for _, variant := range variants {
		productIDs = append(productIDs, variant.ProductID)
	}
	products, err := tc.Ledger.LockProducts(tc.Ctx, productIDs)
	if err != nil {
		return err
	}

	if err := ValidateVariantsAndStock(tc.Items, variants, products); err != nil {
		return err
	}
	orderType, err := DeriveOrderType(tc.Items, variants, products)
	if err != nil {
		return err
	}
	tc.Variants = variants
	tc.Products = products
	tc.OrderType = orderType
	return nil
}

func validatePaymentMethod(tc *TxContext) error {
	return ValidatePaymentMethod(tc.Request.PaymentMethod, tc.OrderType)
}

func validateShippingMethod(tc *TxContext) error {
	selected := tc.Cart.ShippingMethodID != nil
	if selected {
		method, err := tc.Carts.FindShippingMethod(tc.Ctx, *tc.Cart.ShippingMethodID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipping method")
		}
		tc.ShippingMethod = method
	}
	if err := ValidateShippingMethod(tc.ShippingMethod, selected, tc.OrderType); err != nil {
		return err
	}
	// the order keeps only what it ships to
	if tc.OrderType.HasPhysical() {
		tc.Request.ShippingAddress = tc.Request.ShippingAddress.Normalized()
	} else {
		tc.Request.ShippingAddress = types.Address{}
	}
	return ValidateShippingAddress(tc.Request.ShippingAddress, tc.OrderType)
}

// createOrder copies the cart totals after recomputing them from the locked
// lines, so the order subtotal always equals the sum of its items.
func createOrder(tc *TxContext) error {
	cart.ApplyTotals(tc.Cart, tc.Items)

	order := &models.Order{
		OrderNumber:      tc.OrderNumber,
		OwnerKey:         tc.Cart.OwnerKey,
		UserID:           tc.Identity.UserIDPtr(),
		CustomerName:     tc.Request.Customer.Name,
		CustomerEmail:    tc.Request.Customer.Email,
		CustomerPhone:    tc.Request.Customer.Phone,
		ShippingAddress:  tc.Request.ShippingAddress,
		ShippingMethodID: tc.Cart.ShippingMethodID,
		PaymentMethod:    tc.Request.PaymentMethod,
		OrderType:        tc.OrderType,
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.OrderPaymentStatusPending,
		ShippingStatus:   enums.ShippingStatusPending,
		Currency:         tc.Cart.Currency,
		Subtotal:         tc.Cart.Subtotal,
		TaxAmount:        tc.Cart.TaxAmount,
		ShippingAmount:   tc.Cart.ShippingAmount,
		DiscountAmount:   tc.Cart.DiscountAmount,
		TotalAmount:      tc.Cart.TotalAmount,
		CouponCode:       tc.Cart.CouponCode,
		Notes:            tc.Request.Notes,
	}
	if err := tc.Orders.CreateOrder(tc.Ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	tc.Order = order
	return nil
}

func createOrderItems(tc *TxContext) error {
	items := make([]models.OrderItem, 0, len(tc.Items))
	for _, line := range tc.Items {
		variant := tc.Variants[line.VariantID]
		product := tc.Products[variant.ProductID]
		items = append(items, models.OrderItem{
			OrderID:     tc.Order.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			VariantName: line.VariantName,
			SKU:         line.SKU,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			TotalPrice:  line.TotalPrice,
			IsDigital:   product.IsDigital,
		})
	}
	if err := tc.Orders.CreateItems(tc.Ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
	}
	tc.OrderItems = items
	return nil
}

// deductStock issues one conditional decrement per variant in ascending id
// order, matching the lock order.
func deductStock(tc *TxContext) error {
	quantities := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(tc.Items))
	for _, item := range tc.Items {
		if _, ok := quantities[item.VariantID]; !ok {
			ids = append(ids, item.VariantID)
		}
		quantities[item.VariantID] += item.Quantity
	}
	for _, variantID := range inventory.SortIDs(ids) {
		if err := tc.Ledger.Decrement(tc.Ctx, variantID, quantities[variantID]); err != nil {
			return err
		}
	}
	return nil
}

// openPayment records the pending payment for offline methods. Online methods
// get their payment when the gateway session is created after commit.
func openPayment(tc *TxContext) error {
	if tc.Request.PaymentMethod.IsOnline() {
		return nil
	}
	payment := &models.Payment{
		OrderID:           tc.Order.ID,
		Gateway:           tc.Request.PaymentMethod,
		PaymentMethodType: enums.PaymentMethodTypeOffline,
		TransactionID:     tc.Order.OrderNumber,
		Amount:            tc.Order.TotalAmount,
		Currency:          tc.Order.Currency,
		Status:            enums.PaymentStatusPending,
	}
	if err := tc.Orders.CreatePayment(tc.Ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open payment")
	}
	tc.Payment = payment
	tc.State = StatePaymentOpened
	return nil
}

func emitOrderCreated(tc *TxContext) error {
	if tc.Events == nil {
		return nil
	}
	count := 0
	for _, item := range tc.OrderItems {
		count += item.Quantity
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   tc.Order.ID,
		Actor: &outbox.ActorRef{
			UserID:   tc.Identity.UserID,
			OwnerKey: tc.Order.OwnerKey,
		},
		Data: payloads.OrderCreatedEvent{
			OrderID:       tc.Order.ID,
			OrderNumber:   tc.Order.OrderNumber,
			OwnerKey:      tc.Order.OwnerKey,
			OrderType:     tc.Order.OrderType,
			PaymentMethod: tc.Order.PaymentMethod,
			Currency:      tc.Order.Currency,
			TotalAmount:   tc.Order.TotalAmount,
			ItemCount:     count,
		},
		OccurredAt: tc.Now,
	}
	return tc.Events.Emit(tc.Ctx, tc.Tx, event)
}

func clearCart(tc *TxContext) error {
	if err := tc.Carts.Delete(tc.Ctx, tc.Cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}
