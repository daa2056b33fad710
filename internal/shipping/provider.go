package shipping

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

// Shipment is what a carrier hands back when a parcel is booked.
type Shipment struct {
	TrackingRef string
	Fee         decimal.Decimal
}

// TrackingEvent is one scan reported by the carrier.
type TrackingEvent struct {
	Status     string
	Location   string
	OccurredAt time.Time
}

// Provider books parcels with a carrier.
type Provider interface {
	CreateShipment(ctx context.Context, order models.Order) (Shipment, error)
	GetTracking(ctx context.Context, trackingRef string) ([]TrackingEvent, error)
}

// ManualProvider is used when parcels are booked by warehouse staff. The
// tracking reference is derived from the order number so repeated calls for
// the same order agree.
type ManualProvider struct {
	prefix string
	now    func() time.Time
}

// NewManualProvider builds a provider minting "<prefix>-<order number>" refs.
func NewManualProvider(prefix string) *ManualProvider {
	if strings.TrimSpace(prefix) == "" {
		prefix = "MAN"
	}
	return &ManualProvider{prefix: prefix, now: time.Now}
}

func (p *ManualProvider) CreateShipment(_ context.Context, order models.Order) (Shipment, error) {
	if strings.TrimSpace(order.OrderNumber) == "" {
		return Shipment{}, pkgerrors.New(pkgerrors.CodeValidation, "order number is required to book a shipment")
	}
	if order.ShippingAddress.IsZero() {
		return Shipment{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping address")
	}
	return Shipment{
		TrackingRef: p.prefix + "-" + order.OrderNumber,
		Fee:         order.ShippingAmount,
	}, nil
}

func (p *ManualProvider) GetTracking(_ context.Context, trackingRef string) ([]TrackingEvent, error) {
	if !strings.HasPrefix(trackingRef, p.prefix+"-") {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking reference not found")
	}
	return []TrackingEvent{{Status: "label_created", OccurredAt: p.now().UTC()}}, nil
}
