package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/api/middleware"
	"github.com/angelmondragon/shopcore-backend/internal/cart"
	internalorders "github.com/angelmondragon/shopcore-backend/internal/orders"
	paymentsvc "github.com/angelmondragon/shopcore-backend/internal/payments"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

type stubPayments struct {
	outcome   *paymentsvc.Outcome
	list      []models.Payment
	err       error
	lastInput paymentsvc.UpdateStatusInput
	called    bool
}

func (s *stubPayments) UpdateStatus(ctx context.Context, input paymentsvc.UpdateStatusInput) (*paymentsvc.Outcome, error) {
	s.called = true
	s.lastInput = input
	return s.outcome, s.err
}

func (s *stubPayments) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	return s.list, s.err
}

type stubOrders struct {
	order      *models.Order
	err        error
	lastCancel internalorders.CancelInput
}

func (s *stubOrders) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) GetForOwner(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) GetByAccessLink(ctx context.Context, orderNumber, accessKey string) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) AccessKey(order models.Order) string { return "" }

func (s *stubOrders) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	s.lastCancel = input
	return s.order, s.err
}

type stubRestocker struct {
	variant *models.ProductVariant
	lastQty int
}

func (s *stubRestocker) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error) {
	s.lastQty = qty
	return s.variant, nil
}

func adminRequest(method, body, param string, id uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/api/admin/v1/x", strings.NewReader(body))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(param, id.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = middleware.WithUserID(ctx, "admin-1")
	ctx = middleware.WithRole(ctx, enums.ActorRoleAdmin)
	return req.WithContext(ctx)
}

func TestUpdatePaymentStatusRecordsAdminActor(t *testing.T) {
	paymentID := uuid.New()
	svc := &stubPayments{outcome: &paymentsvc.Outcome{
		Payment: &models.Payment{ID: paymentID, Status: enums.PaymentStatusRefunded},
		Order:   &models.Order{ID: uuid.New(), PaymentStatus: enums.OrderPaymentStatusRefunded},
	}}
	resp := httptest.NewRecorder()
	UpdatePaymentStatus(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPatch, `{"status":"Refunded","reason":"chargeback"}`, "paymentId", paymentID))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, paymentID, svc.lastInput.PaymentID)
	assert.Equal(t, enums.PaymentStatusRefunded, svc.lastInput.Status)
	assert.Equal(t, "chargeback", svc.lastInput.Reason)
	require.NotNil(t, svc.lastInput.Actor)
	assert.Equal(t, "admin-1", svc.lastInput.Actor.UserID)

	var envelope struct {
		Data paymentUpdateResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "refunded", envelope.Data.Payment.Status)
	require.NotNil(t, envelope.Data.Order)
}

func TestUpdatePaymentStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubPayments{}
	resp := httptest.NewRecorder()
	UpdatePaymentStatus(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPatch, `{"status":"teleported"}`, "paymentId", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, svc.called)
}

func TestUpdatePaymentStatusIllegalTransition(t *testing.T) {
	svc := &stubPayments{err: pkgerrors.New(pkgerrors.CodeConflict, "illegal payment transition refunded -> completed")}
	resp := httptest.NewRecorder()
	UpdatePaymentStatus(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPatch, `{"status":"completed"}`, "paymentId", uuid.New()))

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestOrderPaymentsListsAttempts(t *testing.T) {
	orderID := uuid.New()
	svc := &stubPayments{list: []models.Payment{
		{ID: uuid.New(), OrderID: orderID, Status: enums.PaymentStatusFailed},
		{ID: uuid.New(), OrderID: orderID, Status: enums.PaymentStatusCompleted},
	}}
	resp := httptest.NewRecorder()
	OrderPayments(svc, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "", "orderId", orderID))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestCancelOrderRequiresReason(t *testing.T) {
	svc := &stubOrders{order: &models.Order{ID: uuid.New()}}
	resp := httptest.NewRecorder()
	CancelOrder(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, `{}`, "orderId", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, uuid.Nil, svc.lastCancel.OrderID)
}

func TestCancelOrderPassesActor(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrders{order: &models.Order{ID: orderID, Status: enums.OrderStatusCancelled}}
	resp := httptest.NewRecorder()
	CancelOrder(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, `{"reason":"fraud"}`, "orderId", orderID))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, orderID, svc.lastCancel.OrderID)
	assert.Equal(t, string(enums.ActorRoleAdmin), svc.lastCancel.Actor.Role)
}

func TestRestockVariant(t *testing.T) {
	variantID := uuid.New()
	svc := &stubRestocker{variant: &models.ProductVariant{ID: variantID, SKU: "TEE-M", StockQuantity: 12}}
	resp := httptest.NewRecorder()
	RestockVariant(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, `{"quantity":10}`, "variantId", variantID))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, svc.lastQty)
	var envelope struct {
		Data variantStockResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, 12, envelope.Data.StockQuantity)
}

func TestRestockVariantRejectsNonPositive(t *testing.T) {
	svc := &stubRestocker{}
	resp := httptest.NewRecorder()
	RestockVariant(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, `{"quantity":-3}`, "variantId", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, svc.lastQty)
}
