package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetters is the operator view over the dead-letter table.
type DeadLetters struct {
	tx   txRunner
	repo *DLQRepository
	logg *logger.Logger
}

func NewDeadLetters(tx txRunner, repo *DLQRepository, logg *logger.Logger) (*DeadLetters, error) {
	if tx == nil || repo == nil {
		return nil, errors.New("transaction runner and dlq repository are required")
	}
	return &DeadLetters{tx: tx, repo: repo, logg: logg}, nil
}

func (d *DeadLetters) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	return d.repo.List(ctx, filter)
}

// Requeue hands a dead-lettered event back to the publisher.
func (d *DeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	var event *models.OutboxEvent
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		event, err = d.repo.RequeueTx(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if d.logg != nil {
		d.logg.Info(d.logg.WithFields(ctx, map[string]any{
			"outbox_id":    event.ID.String(),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "dead-lettered event requeued")
	}
	return event, nil
}
