package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	pkgsquare "github.com/angelmondragon/shopcore-backend/pkg/square"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

// Square payment statuses.
const (
	squareCompleted = "COMPLETED"
	squareFailed    = "FAILED"
	squareCanceled  = "CANCELED"
)

// SquarePayments is the slice of pkg/square the adapter uses.
type SquarePayments interface {
	CreatePayment(ctx context.Context, params pkgsquare.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	LocationID() string
	SigningSecret() string
	NotificationURL() string
}

// Square charges a tokenized card directly. The charge usually completes
// synchronously; webhooks confirm or fail it.
type Square struct {
	client SquarePayments
	opts   Options
}

func NewSquare(client SquarePayments, opts Options) (*Square, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if strings.TrimSpace(client.LocationID()) == "" {
		return nil, fmt.Errorf("square location id required")
	}
	return &Square{client: client, opts: opts}, nil
}

func (s *Square) Name() enums.PaymentMethod {
	return enums.PaymentMethodSquare
}

func (s *Square) Create(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	if strings.TrimSpace(req.SourceToken) == "" {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "card token required")
	}
	if !req.Amount.IsPositive() {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	payment, err := s.client.CreatePayment(ctx, pkgsquare.PaymentCreateParams{
		AmountCents: toMinorUnits(req.Amount),
		Currency:    string(req.Currency),
		LocationID:  s.client.LocationID(),
		SourceID:    req.SourceToken,
		Note:        req.Description,
		ReferenceID: req.OrderNumber,
		BuyerEmail:  req.CustomerEmail,
	})
	if err != nil {
		return CreateResponse{}, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create square payment")
	}
	id := derefString(payment.GetID())
	resp := CreateResponse{TransactionRef: id}
	if ret := strings.TrimSpace(req.ReturnURL); ret != "" {
		sep := "?"
		if strings.Contains(ret, "?") {
			sep = "&"
		}
		resp.RedirectURL = ret + sep + "payment_id=" + url.QueryEscape(id)
	}
	return resp, nil
}

// Verify re-reads the payment named in the return URL from Square.
func (s *Square) Verify(ctx context.Context, params url.Values) (Result, error) {
	id := strings.TrimSpace(params.Get("payment_id"))
	if id == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment_id required")
	}
	payment, err := s.client.GetPayment(ctx, id)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "load square payment")
	}
	result := s.resultFromPayment(payment)
	result.EventID = "return:" + result.TransactionID + ":" + derefString(payment.GetStatus())
	return result, nil
}

type squareEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment *sq.Payment `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook checks the base64 HMAC-SHA256 over notification URL + body.
func (s *Square) Webhook(ctx context.Context, payload []byte, headers http.Header) (Result, error) {
	if !validSquareSignature(s.client.SigningSecret(), s.client.NotificationURL(), payload, headers.Get(squareSignatureHeader)) {
		if !s.opts.testMode() {
			return Result{}, invalidSignature(s.Name())
		}
		s.opts.Logger.Warn(s.opts.Logger.WithGateway(ctx, s.Name().String()), "square signature mismatch accepted in test mode")
	}

	var event squareEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return Result{}, malformed(s.Name(), err, "decode square event")
	}
	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		eventID = event.Data.ID
	}
	if event.Type != "payment.created" && event.Type != "payment.updated" {
		return Result{Gateway: s.Name(), EventID: eventID, Ignored: true, Message: event.Type}, nil
	}
	if event.Data.Object.Payment == nil {
		return Result{}, malformed(s.Name(), fmt.Errorf("event %s", eventID), "square payment missing")
	}
	result := s.resultFromPayment(event.Data.Object.Payment)
	result.EventID = eventID
	return result, nil
}

func (s *Square) Ack(err error) Ack {
	return defaultAck(err)
}

// resultFromPayment marks APPROVED and PENDING payments as ignored; only a
// terminal status settles.
func (s *Square) resultFromPayment(payment *sq.Payment) Result {
	status := strings.ToUpper(derefString(payment.GetStatus()))
	result := Result{
		Gateway:       s.Name(),
		OrderNumber:   derefString(payment.GetReferenceID()),
		TransactionID: derefString(payment.GetID()),
		Success:       status == squareCompleted,
		Message:       "square status " + status,
		Ignored:       status != squareCompleted && status != squareFailed && status != squareCanceled,
	}
	if money := payment.GetAmountMoney(); money != nil {
		if money.GetAmount() != nil {
			result.Amount = fromMinorUnits(*money.GetAmount())
		}
		if money.GetCurrency() != nil {
			result.Currency = enums.Currency(*money.GetCurrency())
		}
	}
	return result
}

func validSquareSignature(secret, notificationURL string, payload []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(provided)))
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
