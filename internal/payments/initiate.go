package payments

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

func (s *service) Supports(method enums.PaymentMethod) bool {
	return method.IsOnline() && s.gateways.Supports(method)
}

// CreateOnlinePayment opens a gateway session for an order and records the
// attempt as a pending payment. The provider call happens before any row is
// locked; it is safe to call again when a previous attempt failed.
func (s *service) CreateOnlinePayment(ctx context.Context, req InitiateRequest) (*models.Payment, error) {
	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if !order.PaymentMethod.IsOnline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid online").
			WithDetails(map[string]any{"payment_method": order.PaymentMethod})
	}
	switch {
	case order.Status == enums.OrderStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	case order.PaymentStatus == enums.OrderPaymentStatusPaid, order.PaymentStatus == enums.OrderPaymentStatusRefunded:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}
	adapter, err := s.gateways.Get(order.PaymentMethod)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithGateway(ctx, adapter.Name().String())

	resp, err := adapter.Create(ctx, gateways.CreateRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		Description:   "Order " + order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		ReturnURL:     s.returnURL(adapter.Name(), req.ReturnURL),
		ClientIP:      req.ClientIP,
		SourceToken:   req.SourceToken,
	})
	if err != nil {
		s.logg.Warn(ctx, "open payment session: "+err.Error())
		return nil, err
	}
	if strings.TrimSpace(resp.TransactionRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no transaction reference")
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		Gateway:           adapter.Name(),
		PaymentMethodType: enums.PaymentMethodTypeOnline,
		TransactionID:     resp.TransactionRef,
		Amount:            order.TotalAmount,
		Currency:          order.Currency,
		Status:            enums.PaymentStatusPending,
	}
	if resp.RedirectURL != "" {
		redirect := resp.RedirectURL
		payment.RedirectURL = &redirect
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "transaction_id", payment.TransactionID), "payment session opened")
	return payment, nil
}

// returnURL prefers the caller's URL and falls back to the gateway's return
// route under the configured base.
func (s *service) returnURL(gateway enums.PaymentMethod, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if s.returnBase == "" {
		return ""
	}
	return s.returnBase + "/" + gateway.String() + "/return"
}
