package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/discounts"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/shopcore-backend/pkg/db"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart aggregate. Every mutating call re-checks ownership
// and recomputes totals inside the same transaction.
type Service interface {
	GetOrCreate(ctx context.Context, sel Selectors) (*models.CartHeader, error)
	Get(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error)
	AddItem(ctx context.Context, identity Identity, cartID, variantID uuid.UUID, qty int) (*models.CartHeader, error)
	UpdateItem(ctx context.Context, identity Identity, cartID, itemID uuid.UUID, qty int) (*models.CartHeader, error)
	RemoveItem(ctx context.Context, identity Identity, cartID, itemID uuid.UUID) (*models.CartHeader, error)
	Clear(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error)
	RecalculateTotals(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error)
	ApplyCoupon(ctx context.Context, identity Identity, cartID uuid.UUID, code string) (*models.CartHeader, error)
	RemoveCoupon(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error)
	SetShippingMethod(ctx context.Context, identity Identity, cartID uuid.UUID, methodID *uuid.UUID) (*models.CartHeader, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    inventory.Ledger
	discounts discounts.Service
	currency  enums.Currency
	logg      *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, ledger inventory.Ledger, discountSvc discounts.Service, currency enums.Currency, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if discountSvc == nil {
		return nil, fmt.Errorf("discount service required")
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid cart currency %q", currency)
	}
	return &service{
		repo:      repo,
		tx:        tx,
		ledger:    ledger,
		discounts: discountSvc,
		currency:  currency,
		logg:      logg,
	}, nil
}

// GetOrCreate resolves the caller's cart with strict priority: user, then an
// explicit cart id, then session. When nothing resolves a guest cart is minted.
func (s *service) GetOrCreate(ctx context.Context, sel Selectors) (*models.CartHeader, error) {
	identity := sel.Identity()

	if identity.UserID != "" {
		return s.findOrCreateByOwner(ctx, UserOwnerKey(identity.UserID))
	}

	if sel.CartID != nil && *sel.CartID != uuid.Nil {
		header, err := s.repo.FindByID(ctx, *sel.CartID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if header != nil {
			if !identity.Owns(header.OwnerKey) {
				return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to caller")
			}
			return header, nil
		}
	}

	if identity.SessionID != "" {
		return s.findOrCreateByOwner(ctx, SessionOwnerKey(identity.SessionID))
	}

	cartID := uuid.New()
	return s.create(ctx, cartID, GuestOwnerKey(cartID))
}

func (s *service) findOrCreateByOwner(ctx context.Context, ownerKey string) (*models.CartHeader, error) {
	header, err := s.repo.FindByOwnerKey(ctx, ownerKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if header != nil {
		return header, nil
	}

	header, err = s.create(ctx, uuid.New(), ownerKey)
	if err != nil && dbpkg.IsUniqueViolation(err, "") {
		// lost the race with a concurrent request for the same owner
		existing, findErr := s.repo.FindByOwnerKey(ctx, ownerKey)
		if findErr == nil && existing != nil {
			return existing, nil
		}
	}
	return header, err
}

func (s *service) create(ctx context.Context, cartID uuid.UUID, ownerKey string) (*models.CartHeader, error) {
	header := &models.CartHeader{
		ID:        cartID,
		OwnerKey:  ownerKey,
		OwnerKind: OwnerKindOf(ownerKey),
		Currency:  s.currency,
	}
	ApplyTotals(header, nil)
	if err := s.repo.Create(ctx, header); err != nil {
		return nil, err
	}
	header.Items = []models.CartItem{}
	s.logg.Info(s.logg.WithCartID(ctx, header.ID.String()), "cart created")
	return header, nil
}

func (s *service) Get(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	header, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if header == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if !identity.Owns(header.OwnerKey) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to caller")
	}
	return header, nil
}

// mutate runs fn against the locked, ownership-checked header, then recomputes
// totals from the current lines and returns the reloaded cart.
func (s *service) mutate(ctx context.Context, identity Identity, cartID uuid.UUID, fn func(tx *gorm.DB, repo Repository, header *models.CartHeader) error) (*models.CartHeader, error) {
	var out *models.CartHeader
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		header, err := repo.LockHeader(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
		}
		if header == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		if !identity.Owns(header.OwnerKey) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to caller")
		}

		if fn != nil {
			if err := fn(tx, repo, header); err != nil {
				return err
			}
		}

		items, err := repo.LockItems(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
		}
		ApplyTotals(header, items)
		if err := repo.SaveTotals(ctx, header); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart totals")
		}

		out, err = repo.FindByID(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddItem merges qty into the (product, variant) line. The variant row is
// locked before the existing line is read so the stock check covers the final
// quantity, not just the increment.
func (s *service) AddItem(ctx context.Context, identity Identity, cartID, variantID uuid.UUID, qty int) (*models.CartHeader, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}

	return s.mutate(ctx, identity, cartID, func(tx *gorm.DB, repo Repository, header *models.CartHeader) error {
		variant, product, err := s.lockSellable(ctx, tx, variantID)
		if err != nil {
			return err
		}

		existing, err := repo.FindLine(ctx, header.ID, product.ID, variant.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
		}
		finalQty := qty
		if existing != nil {
			finalQty += existing.Quantity
		}
		if finalQty > variant.StockQuantity {
			return inventory.InsufficientStock(variant.ID, finalQty).
				WithDetails(map[string]any{
					"variant_id": variant.ID.String(),
					"requested":  finalQty,
					"available":  variant.StockQuantity,
				})
		}

		unitPrice := variant.UnitPrice()
		if existing != nil {
			existing.Quantity = finalQty
			existing.UnitPrice = unitPrice
			existing.TotalPrice = LineTotal(unitPrice, finalQty)
			return repo.SaveItem(ctx, existing)
		}
		return repo.CreateItem(ctx, &models.CartItem{
			CartID:      header.ID,
			ProductID:   product.ID,
			VariantID:   variant.ID,
			ProductName: product.Name,
			VariantName: variant.Name,
			SKU:         variant.SKU,
			UnitPrice:   unitPrice,
			Quantity:    finalQty,
			TotalPrice:  LineTotal(unitPrice, finalQty),
		})
	})
}

// UpdateItem sets the line quantity. A quantity of zero or less removes it.
func (s *service) UpdateItem(ctx context.Context, identity Identity, cartID, itemID uuid.UUID, qty int) (*models.CartHeader, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, identity, cartID, itemID)
	}

	return s.mutate(ctx, identity, cartID, func(tx *gorm.DB, repo Repository, header *models.CartHeader) error {
		item, err := repo.FindItem(ctx, header.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		variant, _, err := s.lockSellable(ctx, tx, item.VariantID)
		if err != nil {
			return err
		}
		if qty > variant.StockQuantity {
			return inventory.InsufficientStock(variant.ID, qty).
				WithDetails(map[string]any{
					"variant_id": variant.ID.String(),
					"requested":  qty,
					"available":  variant.StockQuantity,
				})
		}

		item.Quantity = qty
		item.UnitPrice = variant.UnitPrice()
		item.TotalPrice = LineTotal(item.UnitPrice, qty)
		return repo.SaveItem(ctx, item)
	})
}

func (s *service) RemoveItem(ctx context.Context, identity Identity, cartID, itemID uuid.UUID) (*models.CartHeader, error) {
	return s.mutate(ctx, identity, cartID, func(_ *gorm.DB, repo Repository, header *models.CartHeader) error {
		item, err := repo.FindItem(ctx, header.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return repo.DeleteItem(ctx, header.ID, itemID)
	})
}

// Clear drops every line and the coupon.
func (s *service) Clear(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.mutate(ctx, identity, cartID, func(_ *gorm.DB, repo Repository, header *models.CartHeader) error {
		header.CouponCode = nil
		header.DiscountAmount = decimal.Zero
		return repo.DeleteItems(ctx, header.ID)
	})
}

func (s *service) RecalculateTotals(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.mutate(ctx, identity, cartID, nil)
}

// ApplyCoupon asks the discount service for the amount on the current subtotal.
func (s *service) ApplyCoupon(ctx context.Context, identity Identity, cartID uuid.UUID, code string) (*models.CartHeader, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	return s.mutate(ctx, identity, cartID, func(_ *gorm.DB, repo Repository, header *models.CartHeader) error {
		items, err := repo.LockItems(ctx, header.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot apply a coupon to an empty cart")
		}
		ApplyTotals(header, items)

		discount, err := s.discounts.Evaluate(ctx, header.ID, code, header.Subtotal)
		if err != nil {
			return err
		}
		header.CouponCode = &discount.Code
		header.DiscountAmount = discount.Amount
		return nil
	})
}

func (s *service) RemoveCoupon(ctx context.Context, identity Identity, cartID uuid.UUID) (*models.CartHeader, error) {
	return s.mutate(ctx, identity, cartID, func(_ *gorm.DB, _ Repository, header *models.CartHeader) error {
		header.CouponCode = nil
		header.DiscountAmount = decimal.Zero
		return nil
	})
}

// SetShippingMethod selects an active method and copies its fee into the cart.
// A nil method clears the selection.
func (s *service) SetShippingMethod(ctx context.Context, identity Identity, cartID uuid.UUID, methodID *uuid.UUID) (*models.CartHeader, error) {
	return s.mutate(ctx, identity, cartID, func(_ *gorm.DB, repo Repository, header *models.CartHeader) error {
		if methodID == nil || *methodID == uuid.Nil {
			header.ShippingMethodID = nil
			header.ShippingAmount = decimal.Zero
			return nil
		}
		method, err := repo.FindShippingMethod(ctx, *methodID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipping method")
		}
		if method == nil || !method.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping method is not available")
		}
		header.ShippingMethodID = &method.ID
		header.ShippingAmount = method.Fee
		return nil
	})
}

// lockSellable locks the variant, then reads its product, and rejects anything
// that cannot be sold.
func (s *service) lockSellable(ctx context.Context, tx *gorm.DB, variantID uuid.UUID) (models.ProductVariant, models.Product, error) {
	ledger := s.ledger.WithTx(tx)

	variants, err := ledger.LockVariants(ctx, []uuid.UUID{variantID})
	if err != nil {
		return models.ProductVariant{}, models.Product{}, err
	}
	variant := variants[variantID]
	products, err := ledger.LockProducts(ctx, []uuid.UUID{variant.ProductID})
	if err != nil {
		return models.ProductVariant{}, models.Product{}, err
	}
	product := products[variant.ProductID]

	if variant.Status != enums.ProductStatusActive || product.Status != enums.ProductStatusActive {
		return models.ProductVariant{}, models.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
			WithDetails(map[string]any{"variant_id": variantID.String()})
	}
	return variant, product, nil
}
