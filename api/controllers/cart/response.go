package cart

import (
	cartdto "github.com/angelmondragon/shopcore-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
)

func newCartView(header *models.CartHeader) cartdto.Cart {
	items := make([]cartdto.CartItem, 0, len(header.Items))
	for _, item := range header.Items {
		items = append(items, cartdto.CartItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice,
		})
	}
	return cartdto.Cart{
		ID:               header.ID,
		Currency:         string(header.Currency),
		Items:            items,
		Subtotal:         header.Subtotal,
		TaxAmount:        header.TaxAmount,
		ShippingAmount:   header.ShippingAmount,
		DiscountAmount:   header.DiscountAmount,
		TotalAmount:      header.TotalAmount,
		CouponCode:       header.CouponCode,
		ShippingMethodID: header.ShippingMethodID,
		UpdatedAt:        header.UpdatedAt,
	}
}
