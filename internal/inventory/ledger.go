package inventory

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

// Ledger owns every read-for-update and mutation of variant stock. Callers
// must bind it to a transaction with WithTx before locking.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	LockVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error)
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Decrement(ctx context.Context, variantID uuid.UUID, qty int) error
	Increment(ctx context.Context, variantID uuid.UUID, qty int) error
}

type ledger struct {
	db *gorm.DB
}

// NewLedger builds a stock ledger bound to the provided DB.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

// SortIDs orders ids ascending by their byte value, which matches the uuid
// ordering used by Postgres. Every multi-row lock goes through this order.
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}

// LockVariants takes an exclusive row lock on each variant in ascending id
// order and returns the rows as read under the lock.
func (l *ledger) LockVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error) {
	ordered := SortIDs(ids)
	if len(ordered) == 0 {
		return map[uuid.UUID]models.ProductVariant{}, nil
	}

	var rows []models.ProductVariant
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock variants")
	}

	out := make(map[uuid.UUID]models.ProductVariant, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	for _, id := range ordered {
		if _, ok := out[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant_id": id.String()})
		}
	}
	return out, nil
}

// LockProducts locks the parent products of a set of variants. Products are
// locked after variants so status changes cannot race a checkout.
func (l *ledger) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	ordered := SortIDs(ids)
	if len(ordered) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}

	var rows []models.Product
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id IN ?", ordered).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock products")
	}

	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	for _, id := range ordered {
		if _, ok := out[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
	}
	return out, nil
}

// Decrement subtracts qty only while enough stock remains. Zero rows affected
// means a concurrent writer got there first.
func (l *ledger) Decrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := l.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock_quantity >= ?", variantID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return InsufficientStock(variantID, qty)
	}
	return nil
}

// Increment restores stock, for cancellations and admin restocks.
func (l *ledger) Increment(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := l.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
			WithDetails(map[string]any{"variant_id": variantID.String()})
	}
	return nil
}

// InsufficientStock is the conflict returned whenever a requested quantity
// exceeds what is on hand.
func InsufficientStock(variantID uuid.UUID, requested int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for variant %s", variantID)).
		WithDetails(map[string]any{
			"variant_id": variantID.String(),
			"requested":  requested,
		})
}
