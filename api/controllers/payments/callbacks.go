package payments

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopcore-backend/api/responses"
	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	paymentsvc "github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type ReturnVerifier interface {
	VerifyReturn(ctx context.Context, gateway enums.PaymentMethod, params url.Values) (*paymentsvc.Outcome, error)
}

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, gateway enums.PaymentMethod, payload []byte, headers http.Header) (gateways.Ack, error)
}

type returnResponse struct {
	OrderID       string `json:"order_id,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	OrderStatus   string `json:"order_status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Paid          bool   `json:"paid"`
	Pending       bool   `json:"pending"`
}

// Return verifies the signed query a gateway appends when it sends the
// shopper back, settles the payment and reports the resulting state.
func Return(svc ReturnVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		gateway, err := gatewayParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.VerifyReturn(r.Context(), gateway, r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(outcome))
	}
}

// Webhook hands a provider notification to the settlement processor and
// answers in the provider's expected shape. VNPay delivers its IPN as a GET
// with the signed fields in the query string.
func Webhook(svc WebhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		gateway, err := gatewayParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload []byte
		if r.Method == http.MethodGet {
			payload = []byte(r.URL.RawQuery)
		} else {
			payload, err = io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
				return
			}
		}

		ack, err := svc.HandleWebhook(ctx, gateway, payload, r.Header)
		if err != nil {
			logg.Warn(logg.WithGateway(ctx, gateway.String()), "webhook not settled: "+err.Error())
		}
		status := ack.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		responses.WriteRaw(w, status, ack.Body)
	}
}

func gatewayParam(r *http.Request) (enums.PaymentMethod, error) {
	raw := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "gateway")))
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil || !method.IsOnline() {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment gateway").WithDetails(map[string]any{"gateway": raw})
	}
	return method, nil
}

func newReturnResponse(outcome *paymentsvc.Outcome) returnResponse {
	var resp returnResponse
	if outcome == nil {
		resp.Pending = true
		return resp
	}
	if outcome.Order != nil {
		resp.OrderID = outcome.Order.ID.String()
		resp.OrderNumber = outcome.Order.OrderNumber
		resp.OrderStatus = string(outcome.Order.Status)
		resp.Paid = outcome.Order.PaymentStatus == enums.OrderPaymentStatusPaid
	}
	if outcome.Payment != nil {
		resp.PaymentStatus = string(outcome.Payment.Status)
	}
	resp.Pending = outcome.Ignored && !resp.Paid
	return resp
}
