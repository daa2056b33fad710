package gateways

import (
	"context"
	"crypto/sha512"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

const (
	vnpSecureHash     = "vnp_SecureHash"
	vnpSecureHashType = "vnp_SecureHashType"
	vnpTimeLayout     = "20060102150405"
	vnpSessionTTL     = 15 * time.Minute
	vnpSuccessCode    = "00"
	vnpTxnRefSep      = "_"
)

// VNPay response codes for IPN acknowledgements.
const (
	vnpAckOK             = "00"
	vnpAckOrderNotFound  = "01"
	vnpAckAlreadySettled = "02"
	vnpAckInvalidAmount  = "04"
	vnpAckInvalidHash    = "97"
	vnpAckUnknownFailure = "99"
)

var vnpLocation = time.FixedZone("ICT", 7*60*60)

// VNPay is the redirect gateway adapter. Callbacks arrive twice: on the
// buyer's browser return and as a server IPN, both as signed query strings.
type VNPay struct {
	cfg    config.VNPayConfig
	signer *Signer
	opts   Options
	now    func() time.Time
}

// NewVNPay validates credentials and builds the adapter.
func NewVNPay(cfg config.VNPayConfig, opts Options) (*VNPay, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("vnpay tmn code and hash secret are required")
	}
	if strings.TrimSpace(cfg.PayURL) == "" {
		return nil, fmt.Errorf("vnpay pay url is required")
	}
	return &VNPay{
		cfg:    cfg,
		signer: NewSigner(strings.TrimSpace(cfg.HashSecret), sha512.New, true),
		opts:   opts,
		now:    time.Now,
	}, nil
}

func (v *VNPay) Name() enums.PaymentMethod {
	return enums.PaymentMethodVNPay
}

func (v *VNPay) Create(_ context.Context, req CreateRequest) (CreateResponse, error) {
	if strings.TrimSpace(req.OrderNumber) == "" {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	if !req.Amount.IsPositive() {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		return CreateResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "return url required")
	}

	txnRef := vnpTxnRef(req.OrderNumber)
	created := v.now().In(vnpLocation)
	info := strings.TrimSpace(req.Description)
	if info == "" {
		info = "Payment for order " + req.OrderNumber
	}
	ip := strings.TrimSpace(req.ClientIP)
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", v.cfg.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(toMinorUnits(req.Amount), 10))
	params.Set("vnp_CurrCode", strings.ToUpper(string(req.Currency)))
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", v.cfg.Locale)
	params.Set("vnp_ReturnUrl", req.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", created.Format(vnpTimeLayout))
	params.Set("vnp_ExpireDate", created.Add(vnpSessionTTL).Format(vnpTimeLayout))

	query := v.signer.Canonical(params)
	redirect := fmt.Sprintf("%s?%s&%s=%s", v.cfg.PayURL, query, vnpSecureHash, v.signer.Sign(query))
	return CreateResponse{RedirectURL: redirect, TransactionRef: txnRef}, nil
}

func (v *VNPay) Verify(ctx context.Context, params url.Values) (Result, error) {
	data := v.signer.Canonical(params, vnpSecureHash, vnpSecureHashType)
	if !v.signer.Verify(data, params.Get(vnpSecureHash)) {
		if !v.opts.testMode() {
			return Result{}, invalidSignature(v.Name())
		}
		v.opts.Logger.Warn(v.opts.Logger.WithGateway(ctx, v.Name().String()), "vnpay signature mismatch accepted in test mode")
	}

	txnRef := strings.TrimSpace(params.Get("vnp_TxnRef"))
	orderNumber, ok := orderNumberFromTxnRef(txnRef)
	if !ok {
		return Result{}, malformed(v.Name(), fmt.Errorf("txn ref %q", txnRef), "vnpay txn ref missing")
	}
	minor, err := strconv.ParseInt(params.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return Result{}, malformed(v.Name(), err, "vnpay amount invalid")
	}

	code := params.Get("vnp_ResponseCode")
	status := params.Get("vnp_TransactionStatus")
	success := code == vnpSuccessCode && (status == "" || status == vnpSuccessCode)

	return Result{
		Gateway:       v.Name(),
		OrderNumber:   orderNumber,
		TransactionID: txnRef,
		Success:       success,
		Amount:        fromMinorUnits(minor),
		Currency:      enums.Currency(strings.ToUpper(params.Get("vnp_CurrCode"))),
		Message:       fmt.Sprintf("response code %s, transaction status %s", code, status),
		EventID:       strings.Join([]string{txnRef, params.Get("vnp_TransactionNo"), code}, ":"),
	}, nil
}

// Webhook handles the IPN. VNPay delivers it as a GET, so payload is the raw
// query string.
func (v *VNPay) Webhook(ctx context.Context, payload []byte, _ http.Header) (Result, error) {
	params, err := url.ParseQuery(string(payload))
	if err != nil {
		return Result{}, malformed(v.Name(), err, "vnpay ipn query invalid")
	}
	return v.Verify(ctx, params)
}

// Ack renders the IPN reply. VNPay reads RspCode from a 200 response.
func (v *VNPay) Ack(err error) Ack {
	code, message := vnpAckOK, "Confirm Success"
	switch {
	case err == nil:
	case IsAmountMismatch(err):
		code, message = vnpAckInvalidAmount, "Invalid amount"
	case pkgerrors.IsCode(err, pkgerrors.CodeGateway):
		code, message = vnpAckInvalidHash, "Invalid Checksum"
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		code, message = vnpAckOrderNotFound, "Order not found"
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		code, message = vnpAckAlreadySettled, "Order already confirmed"
	default:
		code, message = vnpAckUnknownFailure, "Unknown error"
	}
	return Ack{Status: http.StatusOK, Body: map[string]string{"RspCode": code, "Message": message}}
}

// vnpTxnRef must be unique per merchant per day, so every attempt gets a suffix.
func vnpTxnRef(orderNumber string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return orderNumber + vnpTxnRefSep + suffix
}

func orderNumberFromTxnRef(ref string) (string, bool) {
	idx := strings.LastIndex(ref, vnpTxnRefSep)
	if idx <= 0 {
		return "", false
	}
	return ref[:idx], true
}
