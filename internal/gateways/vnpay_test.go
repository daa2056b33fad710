package gateways

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

func newTestVNPay(t *testing.T, opts Options) *VNPay {
	t.Helper()
	v, err := NewVNPay(config.VNPayConfig{
		TmnCode:    "SHOPTEST",
		HashSecret: "vnpay-hash-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		Version:    "2.1.0",
		Locale:     "vn",
	}, opts)
	require.NoError(t, err)
	v.now = func() time.Time { return time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC) }
	return v
}

// signedReturn builds the query VNPay appends to the return URL.
func signedReturn(v *VNPay, txnRef, amount, code string) url.Values {
	params := url.Values{}
	params.Set("vnp_TmnCode", "SHOPTEST")
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_Amount", amount)
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_ResponseCode", code)
	params.Set("vnp_TransactionStatus", code)
	params.Set("vnp_TransactionNo", "14012345")
	params.Set("vnp_OrderInfo", "Payment for order ORD-1")
	params.Set(vnpSecureHashType, "HmacSHA512")
	params.Set(vnpSecureHash, v.signer.SignParams(params, vnpSecureHash, vnpSecureHashType))
	return params
}

func TestNewVNPayRequiresCredentials(t *testing.T) {
	_, err := NewVNPay(config.VNPayConfig{TmnCode: "X", PayURL: "https://pay"}, Options{})
	require.Error(t, err)
}

func TestVNPayCreateSignsRedirect(t *testing.T) {
	v := newTestVNPay(t, Options{})
	resp, err := v.Create(context.Background(), CreateRequest{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20261016-ABCDEF0123",
		Amount:      decimal.RequireFromString("150000"),
		Currency:    enums.Currency("VND"),
		ReturnURL:   "https://shop.example/api/v1/payments/vnpay/return",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.TransactionRef, "ORD-20261016-ABCDEF0123_"))

	redirect, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	query := redirect.Query()
	assert.Equal(t, "15000000", query.Get("vnp_Amount"))
	assert.Equal(t, resp.TransactionRef, query.Get("vnp_TxnRef"))
	assert.Equal(t, "20261016100000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20261016101500", query.Get("vnp_ExpireDate"))
	assert.True(t, v.signer.Verify(v.signer.Canonical(query, vnpSecureHash), query.Get(vnpSecureHash)))
}

func TestVNPayCreateValidatesInput(t *testing.T) {
	v := newTestVNPay(t, Options{})
	_, err := v.Create(context.Background(), CreateRequest{OrderNumber: "ORD-1", Amount: decimal.Zero, ReturnURL: "https://r"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = v.Create(context.Background(), CreateRequest{OrderNumber: "ORD-1", Amount: decimal.NewFromInt(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVNPayVerifySuccess(t *testing.T) {
	v := newTestVNPay(t, Options{})
	result, err := v.Verify(context.Background(), signedReturn(v, "ORD-20261016-ABCDEF0123_1A2B3C4D", "15000000", "00"))
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentMethodVNPay, result.Gateway)
	assert.Equal(t, "ORD-20261016-ABCDEF0123", result.OrderNumber)
	assert.Equal(t, "ORD-20261016-ABCDEF0123_1A2B3C4D", result.TransactionID)
	assert.True(t, result.Success)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("150000")))
	assert.Equal(t, "ORD-20261016-ABCDEF0123_1A2B3C4D:14012345:00", result.EventID)
}

func TestVNPayVerifyDeclined(t *testing.T) {
	v := newTestVNPay(t, Options{})
	result, err := v.Verify(context.Background(), signedReturn(v, "ORD-1_AAAA", "100", "24"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "24")
}

func TestVNPayVerifyRejectsTamperedParams(t *testing.T) {
	v := newTestVNPay(t, Options{})
	params := signedReturn(v, "ORD-1_AAAA", "100", "00")
	params.Set("vnp_Amount", "1")

	_, err := v.Verify(context.Background(), params)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
}

func TestVNPayVerifyTestModeAcceptsBadSignature(t *testing.T) {
	if !testModeCompiled {
		t.Skip("test mode is compiled out")
	}
	v := newTestVNPay(t, Options{TestMode: true})
	params := signedReturn(v, "ORD-1_AAAA", "100", "00")
	params.Set(vnpSecureHash, "deadbeef")

	result, err := v.Verify(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestVNPayWebhookParsesIPNQuery(t *testing.T) {
	v := newTestVNPay(t, Options{})
	params := signedReturn(v, "ORD-1_AAAA", "100", "00")

	result, err := v.Webhook(context.Background(), []byte(params.Encode()), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", result.OrderNumber)
}

func TestVNPayAckCodes(t *testing.T) {
	v := newTestVNPay(t, Options{})
	cases := []struct {
		err  error
		code string
	}{
		{nil, "00"},
		{AmountMismatch(enums.PaymentMethodVNPay, decimal.NewFromInt(10), decimal.NewFromInt(9)), "04"},
		{invalidSignature(enums.PaymentMethodVNPay), "97"},
		{pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), "01"},
		{pkgerrors.New(pkgerrors.CodeConflict, "illegal payment transition"), "02"},
		{errors.New("boom"), "99"},
	}
	for _, tc := range cases {
		ack := v.Ack(tc.err)
		assert.Equal(t, http.StatusOK, ack.Status)
		assert.Equal(t, tc.code, ack.Body.(map[string]string)["RspCode"])
	}
}

func TestOrderNumberFromTxnRef(t *testing.T) {
	number, ok := orderNumberFromTxnRef("SHOP_EU-20261016-ABC_1234ABCD")
	require.True(t, ok)
	assert.Equal(t, "SHOP_EU-20261016-ABC", number)

	_, ok = orderNumberFromTxnRef("no-separator")
	assert.False(t, ok)
}
