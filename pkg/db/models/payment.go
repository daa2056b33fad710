package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

// Payment is one settlement attempt for an order. (order_id, transaction_id)
// is the idempotency key for gateway callbacks.
type Payment struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order_txn,priority:1"`
	Gateway           enums.PaymentMethod     `gorm:"column:gateway;type:text;not null"`
	PaymentMethodType enums.PaymentMethodType `gorm:"column:payment_method_type;type:text;not null"`
	TransactionID     string                  `gorm:"column:transaction_id;not null;uniqueIndex:ux_payments_order_txn,priority:2"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          enums.Currency          `gorm:"column:currency;type:text;not null"`
	Status            enums.PaymentStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaidAt            *time.Time              `gorm:"column:paid_at"`
	FailureReason     *string                 `gorm:"column:failure_reason"`
	RedirectURL       *string                 `gorm:"column:redirect_url"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
