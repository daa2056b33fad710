package checkout

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

// ValidateOwnership rejects callers whose identity does not own the cart.
func ValidateOwnership(header *models.CartHeader, identity cart.Identity) error {
	if header == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if !identity.Owns(header.OwnerKey) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to caller")
	}
	return nil
}

func ValidateNonEmpty(items []models.CartItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	return nil
}

// ValidateVariantsAndStock checks every line against the locked variant and
// product rows. The first failing line is named in the error details.
func ValidateVariantsAndStock(items []models.CartItem, variants map[uuid.UUID]models.ProductVariant, products map[uuid.UUID]models.Product) error {
	for _, item := range items {
		details := map[string]any{
			"cart_item_id": item.ID.String(),
			"variant_id":   item.VariantID.String(),
			"sku":          item.SKU,
		}
		variant, ok := variants[item.VariantID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant for %s no longer exists", item.SKU)).WithDetails(details)
		}
		if variant.ProductID != item.ProductID {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant for %s moved to another product", item.SKU)).WithDetails(details)
		}
		if variant.Status != enums.ProductStatusActive {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is no longer available", item.SKU)).WithDetails(details)
		}
		product, ok := products[variant.ProductID]
		if !ok || product.Status != enums.ProductStatusActive {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is no longer available", item.ProductName)).WithDetails(details)
		}
		if variant.StockQuantity < item.Quantity {
			details["requested"] = item.Quantity
			details["available"] = variant.StockQuantity
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock: only %d left for %s", variant.StockQuantity, item.SKU)).WithDetails(details)
		}
	}
	return nil
}

// DeriveOrderType classifies the order from the digital flag of each line's
// product. The result is stored once and never recomputed.
func DeriveOrderType(items []models.CartItem, variants map[uuid.UUID]models.ProductVariant, products map[uuid.UUID]models.Product) (enums.OrderType, error) {
	var physical, digital bool
	for _, item := range items {
		variant, ok := variants[item.VariantID]
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant_id": item.VariantID.String()})
		}
		product, ok := products[variant.ProductID]
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": variant.ProductID.String()})
		}
		if product.IsDigital {
			digital = true
		} else {
			physical = true
		}
	}
	switch {
	case physical && digital:
		return enums.OrderTypeMixed, nil
	case digital:
		return enums.OrderTypeDigital, nil
	case physical:
		return enums.OrderTypePhysical, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
}

// ValidatePaymentMethod requires a known method and keeps cash on delivery to
// orders that are handed over physically.
func ValidatePaymentMethod(method enums.PaymentMethod, orderType enums.OrderType) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": method})
	}
	if method == enums.PaymentMethodCOD && orderType.HasDigital() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is only available for physical orders").
			WithDetails(map[string]any{"payment_method": method, "order_type": orderType})
	}
	return nil
}

// ValidateShippingMethod requires an active method for anything that ships.
// Digital orders may omit it, but a selected method must still be active.
func ValidateShippingMethod(method *models.ShippingMethod, selected bool, orderType enums.OrderType) error {
	if !selected {
		if orderType.HasPhysical() {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping method is required")
		}
		return nil
	}
	if method == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping method not found")
	}
	if !method.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping method is not active").
			WithDetails(map[string]any{"shipping_method_id": method.ID.String()})
	}
	return nil
}

func ValidateShippingAddress(address types.Address, orderType enums.OrderType) error {
	if !orderType.HasPhysical() {
		return nil
	}
	if address.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if missing := address.Missing(); len(missing) > 0 {
		slices.Sort(missing)
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}
