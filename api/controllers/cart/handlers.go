package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	cartdto "github.com/angelmondragon/shopcore-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopcore-backend/api/middleware"
	"github.com/angelmondragon/shopcore-backend/api/responses"
	"github.com/angelmondragon/shopcore-backend/api/validators"
	cartsvc "github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

// CartOpen returns the caller's cart, creating one when none exists yet.
func CartOpen(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartdto.OpenCartRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		header, err := svc.GetOrCreate(r.Context(), cartsvc.Selectors{
			UserID:    middleware.UserIDFromContext(r.Context()),
			CartID:    payload.CartID,
			SessionID: middleware.SessionIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartView(header))
	}
}

// CartFetch returns a cart with freshly recalculated totals.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		return svc.RecalculateTotals(r.Context(), identity, cartID)
	})
}

// CartAddItem adds a variant to the cart, merging into an existing line.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), identity, cartID, payload.VariantID, payload.Quantity)
	})
}

// CartUpdateItem sets a line quantity; zero removes the line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		itemID, err := parsePathUUID(r, "itemId", "invalid cart item id")
		if err != nil {
			return nil, err
		}
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateItem(r.Context(), identity, cartID, itemID, payload.Quantity)
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		itemID, err := parsePathUUID(r, "itemId", "invalid cart item id")
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), identity, cartID, itemID)
	})
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		return svc.Clear(r.Context(), identity, cartID)
	})
}

func CartApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		var payload cartdto.ApplyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		code := strings.ToUpper(validators.SanitizeString(payload.Code, 64))
		return svc.ApplyCoupon(r.Context(), identity, cartID, code)
	})
}

func CartRemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		return svc.RemoveCoupon(r.Context(), identity, cartID)
	})
}

func CartSetShippingMethod(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartAction(svc, logg, func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
		var payload cartdto.ShippingMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetShippingMethod(r.Context(), identity, cartID, payload.ShippingMethodID)
	})
}

type cartFunc func(r *http.Request, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error)

// cartAction resolves the cart id and caller identity shared by every
// cart-scoped route. The cart id doubles as a guest's ownership token.
func cartAction(svc cartsvc.Service, logg *logger.Logger, fn cartFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID, err := parsePathUUID(r, "cartId", "invalid cart id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		header, err := fn(r, middleware.CartIdentity(r.Context(), cartID), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartView(header))
	}
}

func parsePathUUID(r *http.Request, param, message string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
