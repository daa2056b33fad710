package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

// OrderCreatedEvent is written in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	OwnerKey      string              `json:"owner_key"`
	OrderType     enums.OrderType     `json:"order_type"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Currency      enums.Currency      `json:"currency"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	ItemCount     int                 `json:"item_count"`
}

// OrderPaidEvent is emitted the first time a payment for the order completes.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	Gateway       enums.PaymentMethod `json:"gateway"`
	TransactionID string              `json:"transaction_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaidAt        time.Time           `json:"paid_at"`
}

// PaymentStatusEvent reports failure or refund of a payment attempt.
type PaymentStatusEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	Gateway       enums.PaymentMethod `json:"gateway"`
	TransactionID string              `json:"transaction_id"`
	Status        enums.PaymentStatus `json:"status"`
}

// OrderCanceledEvent is emitted after stock for the order has been restored.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CanceledAt  time.Time `json:"canceled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// DigitalDeliveryRequestedEvent asks the fulfillment worker to release the
// digital goods of a paid order.
type DigitalDeliveryRequestedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Email       string      `json:"email"`
	VariantIDs  []uuid.UUID `json:"variant_ids"`
}
