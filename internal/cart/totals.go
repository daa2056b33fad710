package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
)

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// ApplyTotals recomputes subtotal and total from the lines. Tax and shipping
// keep their current values. A discount larger than the new subtotal is cut
// down to it so the stored columns always add up to the total.
func ApplyTotals(header *models.CartHeader, items []models.CartItem) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	header.Subtotal = subtotal.Round(2)
	if header.DiscountAmount.GreaterThan(header.Subtotal) {
		header.DiscountAmount = header.Subtotal
	}
	header.TotalAmount = ComputeTotal(header.Subtotal, header.TaxAmount, header.ShippingAmount, header.DiscountAmount)
}

// ComputeTotal is subtotal + tax + shipping - discount, clamped at zero.
func ComputeTotal(subtotal, tax, shipping, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}
