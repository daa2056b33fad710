package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// keyPrefixes are the secret and restricted key kinds accepted per env.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client reads and opens Checkout Sessions, the only Stripe resource the
// settlement flow uses.
type Client struct {
	environment   string
	signingSecret string
	logg          *logger.Logger
}

// NewClient refuses a key that belongs to the other environment, so a
// staging deploy can never charge live cards.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe environment %q needs a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	stripe.Key = apiKey
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe.ready")
	}
	return &Client{environment: env, signingSecret: secret, logg: logg}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret verifies Stripe-Signature headers on webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	const op = "create checkout session"
	if params == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session params required")
	}
	params.Context = ctx
	sess, err := session.New(params)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}
	c.done(ctx, op, sess.ID)
	return sess, nil
}

// GetCheckoutSession reads a session back when the buyer returns.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	const op = "get checkout session"
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(id, params)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}
	c.done(ctx, op, sess.ID)
	return sess, nil
}

func (c *Client) done(ctx context.Context, op, sessionID string) {
	if c == nil || c.logg == nil {
		return
	}
	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{"stripe_op": op, "stripe_session_id": sessionID}), "stripe.call")
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	mapped := mapStripeError(err, op)
	if c != nil && c.logg != nil {
		c.logg.Error(c.logg.WithField(ctx, "stripe_op", op), "stripe.call_failed", mapped)
	}
	return mapped
}

// mapStripeError maps by error type first, then by HTTP status.
func mapStripeError(err error, op string) error {
	msg := "stripe " + op + " failed"
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	code := pkgerrors.CodeDependency
	switch {
	case stripeErr.Type == stripe.ErrorTypeIdempotency:
		code = pkgerrors.CodeIdempotency
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case stripeErr.Type == stripe.ErrorTypeCard, stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, err, msg)
}
