package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopcore-backend/internal/orders"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

const (
	defaultUnpaidOrderTTL = 24 * time.Hour
	defaultExpiryBatch    = 200
	expiryReason          = "payment window expired"
)

type staleOrderReader interface {
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error)
}

// UnpaidOrderJobParams configure the unpaid order expiry job.
type UnpaidOrderJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderReader
	Canceller orderCanceller
	TTL       time.Duration
	BatchSize int
}

// NewUnpaidOrderJob builds the job that cancels online orders whose payment
// never completed, returning their stock to the catalog.
func NewUnpaidOrderJob(params UnpaidOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidOrderJob{
		logg:      params.Logger,
		orders:    params.Orders,
		canceller: params.Canceller,
		ttl:       ttl,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type unpaidOrderJob struct {
	logg      *logger.Logger
	orders    staleOrderReader
	canceller orderCanceller
	ttl       time.Duration
	batch     int
	now       func() time.Time
}

func (j *unpaidOrderJob) Name() string { return "unpaid-order-expiry" }

// Run cancels one batch per cycle. Cancel re-checks the order under its lock,
// so one that was paid or cancelled between the read and the cancel is
// skipped.
func (j *unpaidOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListStaleUnpaid(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var (
		errs    error
		expired int
		skipped int
	)
	for _, order := range stale {
		if err := j.expire(ctx, order.ID); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
		"skipped": skipped,
	})
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return errs
}

func (j *unpaidOrderJob) expire(ctx context.Context, orderID uuid.UUID) error {
	_, err := j.canceller.Cancel(ctx, orders.CancelInput{
		OrderID:      orderID,
		Reason:       expiryReason,
		Actor:        &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
		OnlyIfUnpaid: true,
	})
	return err
}
