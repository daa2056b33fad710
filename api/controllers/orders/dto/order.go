package ordersdto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	IsDigital   bool            `json:"is_digital"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress *types.Address  `json:"shipping_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	OrderType       string          `json:"order_type"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingStatus  string          `json:"shipping_status"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	TrackingRef     *string         `json:"tracking_ref,omitempty"`
	Items           []OrderItem     `json:"items"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	Gateway       string          `json:"gateway"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	RedirectURL   *string         `json:"redirect_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewOrder(order models.Order) Order {
	items := make([]OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice,
			IsDigital:   item.IsDigital,
		})
	}
	view := Order{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		CustomerPhone:  order.CustomerPhone,
		PaymentMethod:  string(order.PaymentMethod),
		OrderType:      string(order.OrderType),
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		ShippingStatus: string(order.ShippingStatus),
		Currency:       string(order.Currency),
		Subtotal:       order.Subtotal,
		TaxAmount:      order.TaxAmount,
		ShippingAmount: order.ShippingAmount,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		CouponCode:     order.CouponCode,
		Notes:          order.Notes,
		TrackingRef:    order.TrackingRef,
		Items:          items,
		ConfirmedAt:    order.ConfirmedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		CreatedAt:      order.CreatedAt,
	}
	if !order.ShippingAddress.IsZero() {
		addr := order.ShippingAddress
		view.ShippingAddress = &addr
	}
	return view
}

func NewPayment(payment models.Payment) Payment {
	return Payment{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		Gateway:       string(payment.Gateway),
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      string(payment.Currency),
		Status:        string(payment.Status),
		PaidAt:        payment.PaidAt,
		FailureReason: payment.FailureReason,
		RedirectURL:   payment.RedirectURL,
		CreatedAt:     payment.CreatedAt,
	}
}

func NewPayments(payments []models.Payment) []Payment {
	out := make([]Payment, 0, len(payments))
	for _, payment := range payments {
		out = append(out, NewPayment(payment))
	}
	return out
}
