// Package gateways normalizes payment providers behind one Adapter contract.
// Adapters translate between provider wire formats and Result; they never
// touch orders or payments.
package gateways

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

// Adapter is implemented once per provider.
type Adapter interface {
	Name() enums.PaymentMethod
	// Create opens a payment session and returns where to send the buyer.
	Create(ctx context.Context, req CreateRequest) (CreateResponse, error)
	// Verify checks the signed parameters of a redirect-return.
	Verify(ctx context.Context, params url.Values) (Result, error)
	// Webhook checks and decodes an asynchronous server-to-server notification.
	Webhook(ctx context.Context, payload []byte, headers http.Header) (Result, error)
	// Ack renders the response body the provider expects for a notification.
	Ack(err error) Ack
}

// CreateRequest carries the order snapshot an adapter needs to open a session.
// Amount is in major units; adapters apply their own encodings.
type CreateRequest struct {
	OrderID       uuid.UUID
	OrderNumber   string
	Amount        decimal.Decimal
	Currency      enums.Currency
	Description   string
	CustomerEmail string
	ReturnURL     string
	ClientIP      string
	// SourceToken is a tokenized card for providers that charge directly.
	SourceToken string
}

// CreateResponse is the outcome of Create. TransactionRef is stored on the
// pending payment and comes back on the callback for that attempt.
type CreateResponse struct {
	RedirectURL    string
	TransactionRef string
}

// Result is the provider-neutral shape of a verified callback.
type Result struct {
	Gateway       enums.PaymentMethod
	OrderNumber   string
	TransactionID string
	Success       bool
	Amount        decimal.Decimal
	Currency      enums.Currency
	// Message is the provider's own status text. It is never shown to buyers.
	Message string
	// EventID is unique per notification and feeds the replay filter.
	EventID string
	// Ignored marks notifications for events settlement does not care about.
	Ignored bool
}

// Ack is the HTTP reply for a provider notification.
type Ack struct {
	Status int
	Body   any
}

func invalidSignature(gateway enums.PaymentMethod) error {
	return pkgerrors.New(pkgerrors.CodeGateway, "invalid gateway signature").
		WithDetails(map[string]any{"gateway": gateway})
}

func malformed(gateway enums.PaymentMethod, err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, msg).
		WithDetails(map[string]any{"gateway": gateway})
}

// defaultAck is used by providers that only look at the status code.
func defaultAck(err error) Ack {
	if err == nil {
		return Ack{Status: http.StatusOK, Body: map[string]string{"status": "ok"}}
	}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeGateway), pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return Ack{Status: http.StatusBadRequest, Body: map[string]string{"status": "rejected"}}
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound), pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		// acknowledged so the provider stops retrying
		return Ack{Status: http.StatusOK, Body: map[string]string{"status": "ignored"}}
	default:
		return Ack{Status: http.StatusInternalServerError, Body: map[string]string{"status": "retry"}}
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(value int64) decimal.Decimal {
	return decimal.New(value, -2)
}

const reasonAmountMismatch = "amount_mismatch"

// AmountMismatch reports a callback whose amount differs from the order total.
func AmountMismatch(gateway enums.PaymentMethod, expected, reported decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeGateway, "payment amount mismatch").
		WithDetails(map[string]any{
			"gateway":  gateway,
			"reason":   reasonAmountMismatch,
			"expected": expected.StringFixed(2),
			"reported": reported.StringFixed(2),
		})
}

// CurrencyMismatch reports a callback settled in another currency than the
// order. It is classified like an amount mismatch.
func CurrencyMismatch(gateway enums.PaymentMethod, expected, reported enums.Currency) error {
	return pkgerrors.New(pkgerrors.CodeGateway, "payment currency mismatch").
		WithDetails(map[string]any{
			"gateway":  gateway,
			"reason":   reasonAmountMismatch,
			"expected": expected,
			"reported": reported,
		})
}

// IsAmountMismatch reports whether err was built by AmountMismatch or
// CurrencyMismatch.
func IsAmountMismatch(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGateway {
		return false
	}
	details, ok := typed.Details().(map[string]any)
	return ok && details["reason"] == reasonAmountMismatch
}
