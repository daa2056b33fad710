package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

func TestNewClientValidatesEnvironmentKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Secret: "whsec_1"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec_1", Env: "test"}, nil)
	require.EqualError(t, err, `stripe environment "test" needs a key starting with sk_test_ or rk_test_`)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "LIVE"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "rk_test_1", Secret: " whsec_1 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "whsec_1", client.SigningSecret())
}

func TestNilClientAccessors(t *testing.T) {
	var client *Client
	assert.Empty(t, client.Environment())
	assert.Empty(t, client.SigningSecret())
}

func TestMapStripeError(t *testing.T) {
	cases := []struct {
		err  *stripe.Error
		want pkgerrors.Code
	}{
		{&stripe.Error{HTTPStatusCode: 401}, pkgerrors.CodeUnauthorized},
		{&stripe.Error{HTTPStatusCode: 429}, pkgerrors.CodeRateLimit},
		{&stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeIdempotency}, pkgerrors.CodeIdempotency},
		{&stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard}, pkgerrors.CodeValidation},
		{&stripe.Error{HTTPStatusCode: 500, Type: stripe.ErrorTypeAPI}, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, pkgerrors.As(mapStripeError(tc.err, "op")).Code())
	}
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(mapStripeError(errors.New("timeout"), "op")).Code())
}
