package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

// ProductVariant is the stock-keeping unit. StockQuantity is the single source
// of truth for availability and only moves through conditional updates.
type ProductVariant struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string              `gorm:"column:name;not null"`
	SKU           string              `gorm:"column:sku;not null;uniqueIndex"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice     decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	StockQuantity int                 `gorm:"column:stock_quantity;not null;default:0;check:stock_quantity >= 0"`
	Status        enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// UnitPrice is the sale price when one is set, otherwise the list price.
func (v ProductVariant) UnitPrice() decimal.Decimal {
	if v.SalePrice.Valid {
		return v.SalePrice.Decimal
	}
	return v.Price
}
