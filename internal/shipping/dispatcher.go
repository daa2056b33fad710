package shipping

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

// Dispatcher books a shipment for an order once and records the tracking
// reference. It runs after the order transaction has committed.
type Dispatcher struct {
	db       *gorm.DB
	provider Provider
	logg     *logger.Logger
}

// NewDispatcher wires the carrier provider to the orders table.
func NewDispatcher(db *gorm.DB, provider Provider, logg *logger.Logger) (*Dispatcher, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if provider == nil {
		return nil, fmt.Errorf("shipping provider required")
	}
	return &Dispatcher{db: db, provider: provider, logg: logg}, nil
}

// Dispatch books the parcel unless the order already carries a tracking
// reference. The reference is only written while the column is still empty,
// so concurrent callers cannot ship twice.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID uuid.UUID) (string, error) {
	var order models.Order
	if err := d.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
	}
	if order.TrackingRef != nil {
		return *order.TrackingRef, nil
	}
	if !order.OrderType.HasPhysical() {
		return "", nil
	}

	shipment, err := d.provider.CreateShipment(ctx, order)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
	}

	res := d.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tracking_ref IS NULL", orderID).
		Update("tracking_ref", shipment.TrackingRef)
	if res.Error != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "store tracking ref")
	}
	if res.RowsAffected == 0 && d.logg != nil {
		d.logg.Warn(d.logg.WithOrderID(ctx, orderID.String()), "tracking ref already recorded by another caller")
	}
	return shipment.TrackingRef, nil
}

// Tracking proxies the carrier's scan history.
func (d *Dispatcher) Tracking(ctx context.Context, trackingRef string) ([]TrackingEvent, error) {
	return d.provider.GetTracking(ctx, trackingRef)
}
