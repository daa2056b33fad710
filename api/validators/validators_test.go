package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

type contact struct {
	Email string `json:"email" validate:"required,email"`
}

type samplePayload struct {
	Method  string  `json:"payment_method" validate:"required,payment_method"`
	Status  string  `json:"status,omitempty" validate:"omitempty,payment_status"`
	Contact contact `json:"contact"`
}

func decode(t *testing.T, body string) (*samplePayload, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest samplePayload
	return &dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"payment_method":"VNPay","status":"completed","contact":{"email":"a@b.co"}}`)
	require.NoError(t, err)
	assert.Equal(t, "VNPay", got.Method)
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	_, err := decode(t, `{"payment_method":"barter","contact":{"email":"nope"}}`)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is not a supported payment method", details["payment_method"])
	assert.Equal(t, "must be a valid email", details["contact.email"])
}

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"payment_method":"cod","contact":{"email":"a@b.co"},"admin":true}`,
		"two objects":   `{"payment_method":"cod","contact":{"email":"a@b.co"}}{}`,
		"wrong type":    `{"payment_method":42}`,
		"too large":     `{"payment_method":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestSanitizeStringIsRuneSafe(t *testing.T) {
	assert.Equal(t, "Giao hàng", SanitizeString("  Giao hàng nhanh  ", 9))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline\x00 two", 0))
	assert.Equal(t, "", SanitizeString("   ", 10))
}
