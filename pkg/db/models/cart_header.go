package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

// CartHeader is the mutable cart aggregate root. It is deleted when an order is
// created from it.
type CartHeader struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey         string          `gorm:"column:owner_key;not null;uniqueIndex"`
	OwnerKind        enums.OwnerKind `gorm:"column:owner_kind;type:text;not null"`
	Currency         enums.Currency  `gorm:"column:currency;type:text;not null"`
	Subtotal         decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount        decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingAmount   decimal.Decimal `gorm:"column:shipping_amount;type:numeric(12,2);not null;default:0"`
	DiscountAmount   decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	CouponCode       *string         `gorm:"column:coupon_code"`
	ShippingMethodID *uuid.UUID      `gorm:"column:shipping_method_id;type:uuid"`
	Items            []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartHeader) TableName() string { return "carts" }

func (c *CartHeader) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
