package gateways

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

const stripeTestSecret = "whsec_test_secret"

type stubSessions struct {
	created *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.created = params
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (s *stubSessions) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func newTestStripe(t *testing.T, sessions *stubSessions, opts Options) *Stripe {
	t.Helper()
	s, err := NewStripe(sessions, stripeTestSecret, config.StripeConfig{}, opts)
	require.NoError(t, err)
	return s
}

func sessionEvent(eventType, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "api_version": %q,
  "type": %q,
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "client_reference_id": "ORD-20261016-ABCDEF0123",
    "amount_total": 2599,
    "currency": "usd",
    "payment_status": %q,
    "status": "complete"
  }}
}`, stripe.APIVersion, eventType, paymentStatus))
}

func signedHeaders(payload []byte, secret string) http.Header {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	headers := http.Header{}
	headers.Set("Stripe-Signature", signed.Header)
	return headers
}

func TestStripeCreateBuildsCheckoutSession(t *testing.T) {
	sessions := &stubSessions{}
	s := newTestStripe(t, sessions, Options{})
	orderID := uuid.New()

	resp, err := s.Create(context.Background(), CreateRequest{
		OrderID:       orderID,
		OrderNumber:   "ORD-20261016-ABCDEF0123",
		Amount:        decimal.RequireFromString("25.99"),
		Currency:      enums.CurrencyUSD,
		CustomerEmail: "buyer@example.com",
		ReturnURL:     "https://shop.example/api/v1/payments/stripe/return?o=1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.TransactionRef)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp.RedirectURL)

	params := sessions.created
	require.NotNil(t, params)
	assert.Equal(t, int64(2599), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *params.LineItems[0].PriceData.Currency)
	assert.Equal(t, "ORD-20261016-ABCDEF0123", *params.ClientReferenceID)
	assert.Equal(t, "https://shop.example/api/v1/payments/stripe/return?o=1&session_id={CHECKOUT_SESSION_ID}", *params.SuccessURL)
	assert.Equal(t, orderID.String(), params.Metadata["order_id"])
}

func TestStripeCreateWrapsProviderError(t *testing.T) {
	s := newTestStripe(t, &stubSessions{err: errors.New("card_declined")}, Options{})
	_, err := s.Create(context.Background(), CreateRequest{OrderNumber: "ORD-1", Amount: decimal.NewFromInt(5), Currency: enums.CurrencyUSD, ReturnURL: "https://r"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
}

func TestStripeWebhookCompleted(t *testing.T) {
	s := newTestStripe(t, &stubSessions{}, Options{})
	payload := sessionEvent("checkout.session.completed", "paid")

	result, err := s.Webhook(context.Background(), payload, signedHeaders(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.False(t, result.Ignored)
	assert.True(t, result.Success)
	assert.Equal(t, "evt_1", result.EventID)
	assert.Equal(t, "ORD-20261016-ABCDEF0123", result.OrderNumber)
	assert.Equal(t, "cs_test_1", result.TransactionID)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("25.99")))
	assert.Equal(t, enums.CurrencyUSD, result.Currency)
}

func TestStripeWebhookCompletedButUnpaidIsIgnored(t *testing.T) {
	s := newTestStripe(t, &stubSessions{}, Options{})
	payload := sessionEvent("checkout.session.completed", "unpaid")

	result, err := s.Webhook(context.Background(), payload, signedHeaders(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.True(t, result.Ignored)
}

func TestStripeWebhookAsyncFailure(t *testing.T) {
	s := newTestStripe(t, &stubSessions{}, Options{})
	payload := sessionEvent("checkout.session.async_payment_failed", "unpaid")

	result, err := s.Webhook(context.Background(), payload, signedHeaders(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.False(t, result.Ignored)
	assert.False(t, result.Success)
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	s := newTestStripe(t, &stubSessions{}, Options{})
	payload := sessionEvent("customer.created", "paid")

	result, err := s.Webhook(context.Background(), payload, signedHeaders(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.True(t, result.Ignored)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	s := newTestStripe(t, &stubSessions{}, Options{})
	payload := sessionEvent("checkout.session.completed", "paid")

	_, err := s.Webhook(context.Background(), payload, signedHeaders(payload, "whsec_other"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
	assert.Equal(t, http.StatusBadRequest, s.Ack(err).Status)
}

func TestStripeVerifyReadsSessionBack(t *testing.T) {
	sessions := &stubSessions{session: &stripe.CheckoutSession{
		ID:                "cs_test_1",
		ClientReferenceID: "ORD-1",
		AmountTotal:       1000,
		Currency:          stripe.CurrencyUSD,
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		Status:            stripe.CheckoutSessionStatusComplete,
	}}
	s := newTestStripe(t, sessions, Options{})

	result, err := s.Verify(context.Background(), url.Values{"session_id": {"cs_test_1"}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Ignored)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(10)))

	_, err = s.Verify(context.Background(), url.Values{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStripeVerifyOpenSessionIsIgnored(t *testing.T) {
	sessions := &stubSessions{session: &stripe.CheckoutSession{
		ID:            "cs_test_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		Status:        stripe.CheckoutSessionStatusOpen,
	}}
	s := newTestStripe(t, sessions, Options{})

	result, err := s.Verify(context.Background(), url.Values{"session_id": {"cs_test_1"}})
	require.NoError(t, err)
	assert.True(t, result.Ignored)
}
