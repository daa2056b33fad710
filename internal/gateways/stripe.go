package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

const stripeSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutSessions is the slice of pkg/stripe the adapter uses.
type CheckoutSessions interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// Stripe opens hosted Checkout Sessions and settles on session webhooks.
type Stripe struct {
	sessions      CheckoutSessions
	signingSecret string
	successURL    string
	cancelURL     string
	opts          Options
}

// NewStripe builds the adapter. successURL/cancelURL fall back to the
// per-request return URL when the config leaves them empty.
func NewStripe(sessions CheckoutSessions, signingSecret string, cfg config.StripeConfig, opts Options) (*Stripe, error) {
	if sessions == nil {
		return nil, fmt.Errorf("stripe checkout sessions required")
	}
	if strings.TrimSpace(signingSecret) == "" {
		return nil, fmt.Errorf("stripe signing secret required")
	}
	return &Stripe{
		sessions:      sessions,
		signingSecret: strings.TrimSpace(signingSecret),
		successURL:    strings.TrimSpace(cfg.SuccessURL),
		cancelURL:     strings.TrimSpace(cfg.CancelURL),
		opts:          opts,
	}, nil
}

func (s *Stripe) Name() enums.PaymentMethod {
	return enums.PaymentMethodStripe
}

func (s *Stripe) Create(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	if !req.Amount.IsPositive() {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	success := firstNonEmpty(s.successURL, req.ReturnURL)
	if success == "" {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "return url required")
	}
	cancel := firstNonEmpty(s.cancelURL, success)

	name := strings.TrimSpace(req.Description)
	if name == "" {
		name = "Order " + req.OrderNumber
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionPlaceholder(success)),
		CancelURL:         stripe.String(withSessionPlaceholder(cancel)),
		ClientReferenceID: stripe.String(req.OrderNumber),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(string(req.Currency))),
				UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("order_number", req.OrderNumber)
	params.AddMetadata("order_id", req.OrderID.String())

	sess, err := s.sessions.CreateCheckoutSession(ctx, params)
	if err != nil {
		return CreateResponse{}, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create stripe checkout session")
	}
	return CreateResponse{RedirectURL: sess.URL, TransactionRef: sess.ID}, nil
}

// Verify loads the session named in the return URL. The return itself is not
// signed; the session is read back from Stripe instead.
func (s *Stripe) Verify(ctx context.Context, params url.Values) (Result, error) {
	id := strings.TrimSpace(params.Get("session_id"))
	if id == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "session_id required")
	}
	sess, err := s.sessions.GetCheckoutSession(ctx, id)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "load stripe checkout session")
	}
	result := s.resultFromSession(sess)
	result.EventID = "return:" + sess.ID + ":" + string(sess.PaymentStatus)
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid && sess.Status != stripe.CheckoutSessionStatusExpired {
		result.Ignored = true
	}
	return result, nil
}

func (s *Stripe) Webhook(ctx context.Context, payload []byte, headers http.Header) (Result, error) {
	event, err := webhook.ConstructEvent(payload, headers.Get("Stripe-Signature"), s.signingSecret)
	if err != nil {
		if !s.opts.testMode() {
			return Result{}, invalidSignature(s.Name())
		}
		s.opts.Logger.Warn(s.opts.Logger.WithGateway(ctx, s.Name().String()), "stripe signature mismatch accepted in test mode")
		if err := json.Unmarshal(payload, &event); err != nil {
			return Result{}, malformed(s.Name(), err, "decode stripe event")
		}
	}
	if event.Data == nil {
		return Result{}, malformed(s.Name(), fmt.Errorf("event %s has no data", event.ID), "stripe event data missing")
	}

	var paid bool
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		paid = true
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
	default:
		return Result{Gateway: s.Name(), EventID: event.ID, Ignored: true, Message: string(event.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Result{}, malformed(s.Name(), err, "decode stripe checkout session")
	}
	result := s.resultFromSession(&sess)
	result.EventID = event.ID
	// completed fires before delayed methods settle
	if paid && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		result.Ignored = true
	}
	return result, nil
}

func (s *Stripe) Ack(err error) Ack {
	return defaultAck(err)
}

func (s *Stripe) resultFromSession(sess *stripe.CheckoutSession) Result {
	orderNumber := sess.ClientReferenceID
	if orderNumber == "" {
		orderNumber = sess.Metadata["order_number"]
	}
	return Result{
		Gateway:       s.Name(),
		OrderNumber:   orderNumber,
		TransactionID: sess.ID,
		Success:       sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Amount:        fromMinorUnits(sess.AmountTotal),
		Currency:      enums.Currency(strings.ToUpper(string(sess.Currency))),
		Message:       fmt.Sprintf("session %s, payment %s", sess.Status, sess.PaymentStatus),
	}
}

func withSessionPlaceholder(raw string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "session_id=" + stripeSessionPlaceholder
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
