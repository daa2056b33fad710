package square

import (
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
)

// Square rejects idempotency keys longer than this.
const maxIdempotencyKeyLen = 45

// PaymentCreateParams describes one card charge for an order.
type PaymentCreateParams struct {
	AmountCents int64
	Currency    string
	LocationID  string
	SourceID    string
	Note        string
	ReferenceID string
	BuyerEmail  string
}

// IdempotencyKey derives the Square key from the order reference so that
// retrying a checkout never charges the card twice. Without a reference a
// random key is used.
func (p PaymentCreateParams) IdempotencyKey() string {
	ref := strings.TrimSpace(p.ReferenceID)
	if ref == "" {
		return "charge-" + uuid.NewString()
	}
	key := "order-" + ref
	if len(key) > maxIdempotencyKeyLen {
		key = key[:maxIdempotencyKeyLen]
	}
	return key
}

func (p PaymentCreateParams) request() *sq.CreatePaymentRequest {
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = "USD"
	}
	amount, autocomplete := p.AmountCents, true
	return &sq.CreatePaymentRequest{
		IdempotencyKey:    p.IdempotencyKey(),
		SourceID:          p.SourceID,
		LocationID:        optional(p.LocationID),
		AmountMoney:       &sq.Money{Amount: &amount, Currency: &currency},
		Autocomplete:      &autocomplete,
		BuyerEmailAddress: optional(p.BuyerEmail),
		Note:              optional(p.Note),
		ReferenceID:       optional(p.ReferenceID),
	}
}

// optional returns nil for blank values so Square treats them as unset.
func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
