package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

var baseURLs = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// Client books card charges against one Square location and exposes the
// webhook signing material.
type Client struct {
	sdk           *sqclient.Client
	locationID    string
	webhookSecret string
	webhookURL    string
	logg          *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := cfg.Environment()
	if env == "" {
		env = "sandbox"
	}
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be sandbox or production, got %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	secret := strings.TrimSpace(cfg.WebhookSecret)
	switch {
	case token == "":
		return nil, errors.New("square access token is required")
	case secret == "":
		return nil, errors.New("square webhook secret is required")
	}

	c := &Client{
		sdk:           sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		locationID:    strings.TrimSpace(cfg.LocationID),
		webhookSecret: secret,
		webhookURL:    strings.TrimSpace(cfg.WebhookURL),
		logg:          logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": c.locationID}), "square client initialized")
	return c, nil
}

func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NotificationURL is the public webhook URL Square signs together with the body.
func (c *Client) NotificationURL() string {
	if c == nil {
		return ""
	}
	return c.webhookURL
}

func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	req := params.request()
	ctx = c.logg.WithFields(ctx, map[string]any{
		"square_op":    "create_payment",
		"reference_id": params.ReferenceID,
		"amount_minor": params.AmountCents,
		"currency":     params.Currency,
	})
	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		return nil, c.fail(ctx, "create payment", err)
	}
	payment := resp.GetPayment()
	c.done(ctx, payment)
	return payment, nil
}

// GetPayment reads the current state of a charge, used when a buyer returns
// from the hosted payment page.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	ctx = c.logg.WithFields(ctx, map[string]any{"square_op": "get_payment", "payment_id": paymentID})
	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		return nil, c.fail(ctx, "get payment", err)
	}
	payment := resp.GetPayment()
	c.done(ctx, payment)
	return payment, nil
}

func (c *Client) done(ctx context.Context, payment *sq.Payment) {
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_id":     deref(payment.GetID()),
		"payment_status": deref(payment.GetStatus()),
	}), "square.call_ok")
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	mapped := mapSquareError(op, err)
	c.logg.Error(c.logg.WithField(ctx, "error_code", pkgerrors.As(mapped).Code()), "square.call_failed", err)
	return mapped
}

// mapSquareError translates an SDK failure. Square error codes win over the
// HTTP status: a reused idempotency key and an auth failure are reported as
// such whatever status they came with, and a declined card is a gateway error.
func mapSquareError(op string, err error) error {
	msg := fmt.Sprintf("square %s failed", op)
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, detail := range squareErrors(apiErr) {
		switch {
		case detail.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case detail.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
		case detail.Category == sq.ErrorCategoryPaymentMethodError:
			code = pkgerrors.CodeGateway
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

// squareErrors decodes the {"errors": [...]} body carried by an APIError.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
