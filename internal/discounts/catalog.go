package discounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

// Kind selects how a coupon value is applied to the subtotal.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

// Coupon is one entry of the catalog.
type Coupon struct {
	Code     string
	Kind     Kind
	Value    decimal.Decimal
	MinOrder decimal.Decimal
}

// Discount is the computed reduction for a cart.
type Discount struct {
	Code   string
	Amount decimal.Decimal
}

// Service evaluates a coupon code against a cart subtotal. Only the computed
// amount is consumed by the cart; rule management lives elsewhere.
type Service interface {
	Evaluate(ctx context.Context, cartID uuid.UUID, code string, subtotal decimal.Decimal) (Discount, error)
}

// Catalog is a static, in-memory Service.
type Catalog struct {
	coupons map[string]Coupon
}

// NewCatalog indexes coupons by upper-cased code.
func NewCatalog(coupons ...Coupon) *Catalog {
	c := &Catalog{coupons: make(map[string]Coupon, len(coupons))}
	for _, coupon := range coupons {
		c.coupons[normalizeCode(coupon.Code)] = coupon
	}
	return c
}

// ParseCatalog reads entries of the form CODE:percent|fixed:value[:min_order]
// separated by commas.
func ParseCatalog(raw string) (*Catalog, error) {
	var coupons []Coupon
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("coupon %q: expected CODE:kind:value[:min_order]", entry)
		}
		kind := Kind(strings.ToLower(strings.TrimSpace(parts[1])))
		if kind != KindPercent && kind != KindFixed {
			return nil, fmt.Errorf("coupon %q: unknown kind %q", entry, parts[1])
		}
		value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil || !value.IsPositive() {
			return nil, fmt.Errorf("coupon %q: value must be a positive decimal", entry)
		}
		if kind == KindPercent && value.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("coupon %q: percent above 100", entry)
		}
		minOrder := decimal.Zero
		if len(parts) == 4 {
			minOrder, err = decimal.NewFromString(strings.TrimSpace(parts[3]))
			if err != nil || minOrder.IsNegative() {
				return nil, fmt.Errorf("coupon %q: invalid min order", entry)
			}
		}
		coupons = append(coupons, Coupon{
			Code:     strings.TrimSpace(parts[0]),
			Kind:     kind,
			Value:    value,
			MinOrder: minOrder,
		})
	}
	return NewCatalog(coupons...), nil
}

// Evaluate returns the discount for code. The amount never exceeds the subtotal.
func (c *Catalog) Evaluate(_ context.Context, _ uuid.UUID, code string, subtotal decimal.Decimal) (Discount, error) {
	coupon, ok := c.coupons[normalizeCode(code)]
	if !ok {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is not valid")
	}
	if subtotal.LessThan(coupon.MinOrder) {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation, "order does not reach the coupon minimum").
			WithDetails(map[string]any{"min_order": coupon.MinOrder.StringFixed(2)})
	}

	var amount decimal.Decimal
	switch coupon.Kind {
	case KindPercent:
		amount = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
	default:
		amount = coupon.Value
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return Discount{Code: coupon.Code, Amount: amount}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
