package checkout

import (
	"net/http"

	"github.com/google/uuid"

	ordersdto "github.com/angelmondragon/shopcore-backend/api/controllers/orders/dto"
	"github.com/angelmondragon/shopcore-backend/api/middleware"
	"github.com/angelmondragon/shopcore-backend/api/responses"
	"github.com/angelmondragon/shopcore-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/shopcore-backend/internal/checkout"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/types"
)

type customerRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,max=32"`
}

type checkoutRequest struct {
	CartID          uuid.UUID       `json:"cart_id" validate:"required"`
	PaymentMethod   string          `json:"payment_method" validate:"required,payment_method"`
	Customer        customerRequest `json:"customer" validate:"required"`
	ShippingAddress *types.Address  `json:"shipping_address,omitempty"`
	Notes           *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
	ReturnURL       string          `json:"return_url,omitempty" validate:"omitempty,url"`
	PaymentToken    string          `json:"payment_token,omitempty"`
}

type checkoutResponse struct {
	Order       ordersdto.Order    `json:"order"`
	Payment     *ordersdto.Payment `json:"payment,omitempty"`
	State       string             `json:"state"`
	RedirectURL string             `json:"redirect_url,omitempty"`
	AccessKey   string             `json:"access_key"`
	TrackingRef string             `json:"tracking_ref,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Checkout converts the caller's cart into an order. A failed gateway call or
// shipment booking after commit still answers 201 with a warning; the order
// exists and payment can be retried.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method"))
			return
		}

		req := checkoutsvc.Request{
			CartID:        payload.CartID,
			PaymentMethod: method,
			Customer: checkoutsvc.Customer{
				Name:  validators.SanitizeString(payload.Customer.Name, 120),
				Email: validators.SanitizeString(payload.Customer.Email, 254),
				Phone: validators.SanitizeString(payload.Customer.Phone, 32),
			},
			Notes:        payload.Notes,
			ReturnURL:    payload.ReturnURL,
			PaymentToken: payload.PaymentToken,
			ClientIP:     middleware.ClientIP(r),
		}
		if payload.ShippingAddress != nil {
			req.ShippingAddress = *payload.ShippingAddress
		}

		result, err := svc.Checkout(r.Context(), middleware.CartIdentity(r.Context(), payload.CartID), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	resp := checkoutResponse{
		Order:       ordersdto.NewOrder(*result.Order),
		State:       string(result.State),
		RedirectURL: result.RedirectURL,
		AccessKey:   result.AccessKey,
		TrackingRef: result.TrackingRef,
	}
	if result.Payment != nil {
		payment := ordersdto.NewPayment(*result.Payment)
		resp.Payment = &payment
	}
	if result.PaymentError != nil {
		resp.Warnings = append(resp.Warnings, "payment could not be started; retry from the order page")
	}
	if result.ShipmentError != nil {
		resp.Warnings = append(resp.Warnings, "shipment booking is delayed")
	}
	return resp
}
