package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdto "github.com/angelmondragon/shopcore-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopcore-backend/api/middleware"
	cartsvc "github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

type stubCartService struct {
	header       *models.CartHeader
	err          error
	lastSel      cartsvc.Selectors
	lastIdentity cartsvc.Identity
	lastCartID   uuid.UUID
	lastVariant  uuid.UUID
	lastQty      int
	lastCode     string
	calls        []string
}

func (s *stubCartService) record(name string, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	s.calls = append(s.calls, name)
	s.lastIdentity = identity
	s.lastCartID = cartID
	return s.header, s.err
}

func (s *stubCartService) GetOrCreate(ctx context.Context, sel cartsvc.Selectors) (*models.CartHeader, error) {
	s.lastSel = sel
	s.calls = append(s.calls, "get_or_create")
	return s.header, s.err
}

func (s *stubCartService) Get(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.record("get", identity, cartID)
}

func (s *stubCartService) AddItem(ctx context.Context, identity cartsvc.Identity, cartID, variantID uuid.UUID, qty int) (*models.CartHeader, error) {
	s.lastVariant = variantID
	s.lastQty = qty
	return s.record("add_item", identity, cartID)
}

func (s *stubCartService) UpdateItem(ctx context.Context, identity cartsvc.Identity, cartID, itemID uuid.UUID, qty int) (*models.CartHeader, error) {
	s.lastQty = qty
	return s.record("update_item", identity, cartID)
}

func (s *stubCartService) RemoveItem(ctx context.Context, identity cartsvc.Identity, cartID, itemID uuid.UUID) (*models.CartHeader, error) {
	return s.record("remove_item", identity, cartID)
}

func (s *stubCartService) Clear(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.record("clear", identity, cartID)
}

func (s *stubCartService) RecalculateTotals(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.record("recalculate", identity, cartID)
}

func (s *stubCartService) ApplyCoupon(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID, code string) (*models.CartHeader, error) {
	s.lastCode = code
	return s.record("apply_coupon", identity, cartID)
}

func (s *stubCartService) RemoveCoupon(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.record("remove_coupon", identity, cartID)
}

func (s *stubCartService) SetShippingMethod(ctx context.Context, identity cartsvc.Identity, cartID uuid.UUID, methodID *uuid.UUID) (*models.CartHeader, error) {
	return s.record("set_shipping", identity, cartID)
}

func sampleHeader() *models.CartHeader {
	return &models.CartHeader{
		ID:       uuid.New(),
		Currency: enums.CurrencyUSD,
		Items: []models.CartItem{{
			ID:          uuid.New(),
			ProductID:   uuid.New(),
			VariantID:   uuid.New(),
			ProductName: "Tee",
			VariantName: "M",
			SKU:         "TEE-M",
			UnitPrice:   decimal.RequireFromString("10.00"),
			Quantity:    2,
			TotalPrice:  decimal.RequireFromString("20.00"),
		}},
		Subtotal:    decimal.RequireFromString("20.00"),
		TotalAmount: decimal.RequireFromString("20.00"),
	}
}

func withRouteParams(req *http.Request, params map[string]string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeCart(t *testing.T, resp *httptest.ResponseRecorder) cartdto.Cart {
	t.Helper()
	var envelope struct {
		Data cartdto.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestCartOpenUsesSessionAndUser(t *testing.T) {
	header := sampleHeader()
	svc := &stubCartService{header: header}
	handler := CartOpen(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	ctx := middleware.WithSessionID(req.Context(), "sess-1")
	ctx = middleware.WithUserID(ctx, "user-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastSel.UserID != "user-1" || svc.lastSel.SessionID != "sess-1" {
		t.Fatalf("unexpected selectors: %+v", svc.lastSel)
	}
	if svc.lastSel.CartID != nil {
		t.Fatalf("expected no cart id, got %v", svc.lastSel.CartID)
	}
	view := decodeCart(t, resp)
	if view.ID != header.ID || len(view.Items) != 1 {
		t.Fatalf("unexpected cart view: %+v", view)
	}
	if !view.TotalAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected total: %s", view.TotalAmount)
	}
}

func TestCartOpenResumesGuestCart(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartOpen(svc, nil)

	body := fmt.Sprintf(`{"cart_id":"%s"}`, cartID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastSel.CartID == nil || *svc.lastSel.CartID != cartID {
		t.Fatalf("expected cart id %s, got %v", cartID, svc.lastSel.CartID)
	}
}

func TestCartFetchUsesCartIDAsGuestToken(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartFetch(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/"+cartID.String(), nil)
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastIdentity.GuestToken != cartID || svc.lastCartID != cartID {
		t.Fatalf("unexpected identity: %+v", svc.lastIdentity)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "recalculate" {
		t.Fatalf("expected recalculate call, got %v", svc.calls)
	}
}

func TestCartFetchInvalidCartID(t *testing.T) {
	svc := &stubCartService{}
	handler := CartFetch(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/nope", nil)
	req = withRouteParams(req, map[string]string{"cartId": "nope"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called, got %v", svc.calls)
	}
}

func TestCartAddItemSuccess(t *testing.T) {
	cartID := uuid.New()
	variantID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartAddItem(svc, nil)

	body := fmt.Sprintf(`{"variant_id":"%s","quantity":3}`, variantID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/"+cartID.String()+"/items", strings.NewReader(body))
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastVariant != variantID || svc.lastQty != 3 {
		t.Fatalf("unexpected add args: variant=%s qty=%d", svc.lastVariant, svc.lastQty)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartAddItem(svc, nil)

	body := fmt.Sprintf(`{"variant_id":"%s","quantity":0}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/"+cartID.String()+"/items", strings.NewReader(body))
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called, got %v", svc.calls)
	}
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}
	handler := CartAddItem(svc, nil)

	body := fmt.Sprintf(`{"variant_id":"%s","quantity":5}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/"+cartID.String()+"/items", strings.NewReader(body))
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartUpdateItemAllowsZero(t *testing.T) {
	cartID := uuid.New()
	itemID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartUpdateItem(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":0}`))
	req = withRouteParams(req, map[string]string{"cartId": cartID.String(), "itemId": itemID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastQty != 0 || svc.calls[0] != "update_item" {
		t.Fatalf("unexpected update call: %v qty=%d", svc.calls, svc.lastQty)
	}
}

func TestCartUpdateItemInvalidItemID(t *testing.T) {
	svc := &stubCartService{header: sampleHeader()}
	handler := CartUpdateItem(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":1}`))
	req = withRouteParams(req, map[string]string{"cartId": uuid.NewString(), "itemId": "bad"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartApplyCouponNormalizesCode(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{header: sampleHeader()}
	handler := CartApplyCoupon(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"  save10 "}`))
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastCode != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", svc.lastCode)
	}
}

func TestCartForbiddenForForeignCart(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to caller")}
	handler := CartClear(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = withRouteParams(req, map[string]string{"cartId": cartID.String()})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCartHandlersRequireService(t *testing.T) {
	handler := CartFetch(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
