package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	ordersdto "github.com/angelmondragon/shopcore-backend/api/controllers/orders/dto"
	"github.com/angelmondragon/shopcore-backend/api/middleware"
	"github.com/angelmondragon/shopcore-backend/api/responses"
	"github.com/angelmondragon/shopcore-backend/api/validators"
	internalorders "github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/internal/shipping"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

// GuestTokenParam carries the cart id a guest checked out with.
const GuestTokenParam = "guest_token"

type PaymentStarter interface {
	CreateOnlinePayment(ctx context.Context, req payments.InitiateRequest) (*models.Payment, error)
}

type TrackingSource interface {
	Tracking(ctx context.Context, trackingRef string) ([]shipping.TrackingEvent, error)
}

type retryPaymentRequest struct {
	ReturnURL    string `json:"return_url,omitempty" validate:"omitempty,url"`
	PaymentToken string `json:"payment_token,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type orderView struct {
	ordersdto.Order
	AccessKey string `json:"access_key,omitempty"`
}

type trackingEvent struct {
	Status     string    `json:"status"`
	Location   string    `json:"location,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type trackingResponse struct {
	TrackingRef string          `json:"tracking_ref"`
	Events      []trackingEvent `json:"events"`
}

// Detail returns an order owned by the caller.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		order, err := ownedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderView{Order: ordersdto.NewOrder(*order), AccessKey: svc.AccessKey(*order)})
	}
}

// PublicDetail resolves the order behind a signed order-status link.
func PublicDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		number := validators.SanitizeString(chi.URLParam(r, "orderNumber"), 64)
		key := validators.SanitizeString(r.URL.Query().Get("key"), 256)
		if number == "" || key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number and key are required"))
			return
		}
		order, err := svc.GetByAccessLink(r.Context(), number, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersdto.NewOrder(*order))
	}
}

// RetryPayment opens a fresh gateway session for an unpaid online order.
func RetryPayment(svc internalorders.Service, starter PaymentStarter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || starter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		order, err := ownedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload retryPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := starter.CreateOnlinePayment(r.Context(), payments.InitiateRequest{
			OrderID:     order.ID,
			ReturnURL:   payload.ReturnURL,
			ClientIP:    middleware.ClientIP(r),
			SourceToken: payload.PaymentToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ordersdto.NewPayment(*payment))
	}
}

// Cancel cancels an order owned by the caller and restocks its lines.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		order, err := ownedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		reason := validators.SanitizeString(payload.Reason, 500)
		if reason == "" {
			reason = "cancelled by customer"
		}

		cancelled, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: order.ID,
			Reason:  reason,
			Actor:   middleware.Actor(r.Context(), order.OwnerKey),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersdto.NewOrder(*cancelled))
	}
}

// Tracking lists carrier scans for a shipped order.
func Tracking(svc internalorders.Service, tracker TrackingSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking unavailable"))
			return
		}
		order, err := ownedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.TrackingRef == nil || strings.TrimSpace(*order.TrackingRef) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order has not been shipped"))
			return
		}

		events, err := tracker.Tracking(r.Context(), *order.TrackingRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := trackingResponse{TrackingRef: *order.TrackingRef, Events: make([]trackingEvent, 0, len(events))}
		for _, event := range events {
			resp.Events = append(resp.Events, trackingEvent{
				Status:     event.Status,
				Location:   event.Location,
				OccurredAt: event.OccurredAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

func ownedOrder(r *http.Request, svc internalorders.Service) (*models.Order, error) {
	orderID, err := parseOrderID(r)
	if err != nil {
		return nil, err
	}
	guestToken, err := parseGuestToken(r)
	if err != nil {
		return nil, err
	}
	return svc.GetForOwner(r.Context(), middleware.CartIdentity(r.Context(), guestToken), orderID)
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	return id, nil
}

func parseGuestToken(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(GuestTokenParam))
	if raw == "" {
		return uuid.Nil, nil
	}
	token, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid guest token").WithDetails(map[string]any{"field": GuestTokenParam})
	}
	return token, nil
}
