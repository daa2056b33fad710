package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

// Order is the immutable result of a checkout. After creation only the status
// columns, the tracking reference and the lifecycle timestamps change.
type Order struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string                   `gorm:"column:order_number;not null;uniqueIndex"`
	OwnerKey         string                   `gorm:"column:owner_key;not null;index"`
	UserID           *string                  `gorm:"column:user_id;index"`
	CustomerName     string                   `gorm:"column:customer_name;not null"`
	CustomerEmail    string                   `gorm:"column:customer_email;not null"`
	CustomerPhone    string                   `gorm:"column:customer_phone;not null"`
	ShippingAddress  types.Address            `gorm:"column:shipping_address;type:jsonb"`
	ShippingMethodID *uuid.UUID               `gorm:"column:shipping_method_id;type:uuid"`
	PaymentMethod    enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null"`
	OrderType        enums.OrderType          `gorm:"column:order_type;type:text;not null"`
	Status           enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ShippingStatus   enums.ShippingStatus     `gorm:"column:shipping_status;type:text;not null;default:'pending'"`
	Currency         enums.Currency           `gorm:"column:currency;type:text;not null"`
	Subtotal         decimal.Decimal          `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount        decimal.Decimal          `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ShippingAmount   decimal.Decimal          `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount   decimal.Decimal          `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount      decimal.Decimal          `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponCode       *string                  `gorm:"column:coupon_code"`
	Notes            *string                  `gorm:"column:notes"`
	TrackingRef      *string                  `gorm:"column:tracking_ref"`
	ConfirmedAt      *time.Time               `gorm:"column:confirmed_at"`
	DeliveredAt      *time.Time               `gorm:"column:delivered_at"`
	CancelledAt      *time.Time               `gorm:"column:cancelled_at"`
	Items            []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
