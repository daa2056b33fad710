package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the admin stock operations.
type Service interface {
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error)
}

type service struct {
	tx     txRunner
	ledger Ledger
	logg   *logger.Logger
}

// NewService builds the inventory service.
func NewService(tx txRunner, ledger Ledger, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &service{tx: tx, ledger: ledger, logg: logg}, nil
}

// Restock adds qty units to the variant through the same atomic increment used
// by cancellations and returns the row as committed.
func (s *service) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*models.ProductVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var updated models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		if _, err := ledger.LockVariants(ctx, []uuid.UUID{variantID}); err != nil {
			return err
		}
		if err := ledger.Increment(ctx, variantID, qty); err != nil {
			return err
		}
		return tx.WithContext(ctx).First(&updated, "id = ?", variantID).Error
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"variant_id": variantID.String(),
			"added":      qty,
			"stock":      updated.StockQuantity,
		})
		s.logg.Info(logCtx, "variant restocked")
	}
	return &updated, nil
}
