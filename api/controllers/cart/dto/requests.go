package cartdto

import "github.com/google/uuid"

// OpenCartRequest resolves or creates the caller's cart. CartID lets a guest
// resume a cart minted earlier.
type OpenCartRequest struct {
	CartID *uuid.UUID `json:"cart_id,omitempty"`
}

type AddItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=999"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// ShippingMethodRequest clears the selection when ShippingMethodID is null.
type ShippingMethodRequest struct {
	ShippingMethodID *uuid.UUID `json:"shipping_method_id"`
}
