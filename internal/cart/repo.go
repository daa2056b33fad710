package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
)

// Repository defines the persistence surface required by the cart service and
// by checkout, which locks and deletes carts inside its own transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.CartHeader, error)
	FindByOwnerKey(ctx context.Context, ownerKey string) (*models.CartHeader, error)
	LockHeader(ctx context.Context, id uuid.UUID) (*models.CartHeader, error)
	LockItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	Create(ctx context.Context, header *models.CartHeader) error
	SaveTotals(ctx context.Context, header *models.CartHeader) error
	FindLine(ctx context.Context, cartID, productID, variantID uuid.UUID) (*models.CartItem, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	FindShippingMethod(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID loads the header with its items. Returns nil, nil when missing.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartHeader, error) {
	var header models.CartHeader
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &header, nil
}

func (r *repository) FindByOwnerKey(ctx context.Context, ownerKey string) (*models.CartHeader, error) {
	var header models.CartHeader
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("owner_key = ?", ownerKey).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &header, nil
}

// LockHeader reads the header FOR UPDATE. Returns nil, nil when missing.
func (r *repository) LockHeader(ctx context.Context, id uuid.UUID) (*models.CartHeader, error) {
	var header models.CartHeader
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &header, nil
}

// LockItems reads every line of the cart FOR UPDATE in id order.
func (r *repository) LockItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) Create(ctx context.Context, header *models.CartHeader) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(header).Error
}

// SaveTotals persists the monetary columns and the coupon/shipping selection.
func (r *repository) SaveTotals(ctx context.Context, header *models.CartHeader) error {
	return r.db.WithContext(ctx).
		Model(&models.CartHeader{}).
		Where("id = ?", header.ID).
		Updates(map[string]any{
			"subtotal":           header.Subtotal,
			"tax_amount":         header.TaxAmount,
			"shipping_amount":    header.ShippingAmount,
			"discount_amount":    header.DiscountAmount,
			"total_amount":       header.TotalAmount,
			"coupon_code":        header.CouponCode,
			"shipping_method_id": header.ShippingMethodID,
		}).Error
}

func (r *repository) FindLine(ctx context.Context, cartID, productID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND variant_id = ?", cartID, productID, variantID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// Delete removes the header and its lines.
func (r *repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", cartID).
		Delete(&models.CartHeader{}).Error
}

func (r *repository) FindShippingMethod(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error) {
	var method models.ShippingMethod
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&method).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}
