package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore-backend/internal/discounts"
	"github.com/angelmondragon/shopcore-backend/internal/inventory"
	"github.com/angelmondragon/shopcore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
)

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, db := dbtest.Client(t)
	catalog, err := discounts.ParseCatalog("TEN:percent:10,BIG:fixed:1000")
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), client, inventory.NewLedger(db), catalog, enums.CurrencyUSD, nil)
	require.NoError(t, err)
	return fixture{db: db, svc: svc}
}

func (f fixture) variant(t *testing.T, price string, sale string, stock int, productStatus enums.ProductStatus) models.ProductVariant {
	t.Helper()
	product := models.Product{Name: "Mug", Status: productStatus}
	require.NoError(t, f.db.Create(&product).Error)
	variant := models.ProductVariant{
		ProductID:     product.ID,
		Name:          "Blue",
		SKU:           "MUG-" + uuid.NewString()[:8],
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Status:        enums.ProductStatusActive,
	}
	if sale != "" {
		variant.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString(sale))
	}
	require.NoError(t, f.db.Create(&variant).Error)
	return variant
}

func TestGetOrCreatePriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userCart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "user_42", userCart.OwnerKey)
	assert.Equal(t, enums.OwnerKindUser, userCart.OwnerKind)

	again, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "42", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, userCart.ID, again.ID, "user wins over session")

	sessionCart, err := f.svc.GetOrCreate(ctx, Selectors{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "session_s1", sessionCart.OwnerKey)

	viaID, err := f.svc.GetOrCreate(ctx, Selectors{CartID: &sessionCart.ID, SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, sessionCart.ID, viaID.ID)

	guest, err := f.svc.GetOrCreate(ctx, Selectors{})
	require.NoError(t, err)
	assert.Equal(t, GuestOwnerKey(guest.ID), guest.OwnerKey)

	reused, err := f.svc.GetOrCreate(ctx, Selectors{CartID: &guest.ID})
	require.NoError(t, err)
	assert.Equal(t, guest.ID, reused.ID)
}

func TestGetOrCreateRejectsForeignCartID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sessionCart, err := f.svc.GetOrCreate(ctx, Selectors{SessionID: "owner"})
	require.NoError(t, err)

	_, err = f.svc.GetOrCreate(ctx, Selectors{CartID: &sessionCart.ID, SessionID: "intruder"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestGetOrCreateFallsBackWhenCartIDUnknown(t *testing.T) {
	f := newFixture(t)
	unknown := uuid.New()

	cart, err := f.svc.GetOrCreate(context.Background(), Selectors{CartID: &unknown, SessionID: "s9"})
	require.NoError(t, err)
	assert.Equal(t, "session_s9", cart.OwnerKey)
}

func TestAddItemMergesAndChecksFinalQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "12.00", "", 5, enums.ProductStatusActive)

	cart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "1"})
	require.NoError(t, err)
	identity := Identity{UserID: "1"}

	cart, err = f.svc.AddItem(ctx, identity, cart.ID, variant.ID, 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	_, err = f.svc.AddItem(ctx, identity, cart.ID, variant.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "3 + 3 exceeds stock 5")

	cart, err = f.svc.AddItem(ctx, identity, cart.ID, variant.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "re-adding merges into the same line")
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "60.00", cart.Subtotal.StringFixed(2))
	assert.Equal(t, "60.00", cart.TotalAmount.StringFixed(2))
}

func TestAddItemUsesSalePriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "20.00", "15.50", 10, enums.ProductStatusActive)
	cart, err := f.svc.GetOrCreate(ctx, Selectors{SessionID: "s"})
	require.NoError(t, err)

	cart, err = f.svc.AddItem(ctx, Identity{SessionID: "s"}, cart.ID, variant.ID, 2)
	require.NoError(t, err)
	item := cart.Items[0]
	assert.Equal(t, "15.50", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "31.00", item.TotalPrice.StringFixed(2))
	assert.Equal(t, "Mug", item.ProductName)
	assert.Equal(t, variant.SKU, item.SKU)
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "5.00", "", 10, enums.ProductStatusInactive)
	cart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "1"})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, Identity{UserID: "1"}, cart.ID, variant.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMutationsRequireOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "5.00", "", 10, enums.ProductStatusActive)
	cart, err := f.svc.GetOrCreate(ctx, Selectors{SessionID: "owner"})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, Identity{SessionID: "other"}, cart.ID, variant.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.AddItem(ctx, Identity{UserID: "1", SessionID: "owner"}, cart.ID, variant.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "a logged-in user cannot act on a session cart")

	_, err = f.svc.Get(ctx, Identity{SessionID: "other"}, cart.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateItemZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "5.00", "", 10, enums.ProductStatusActive)
	identity := Identity{UserID: "1"}
	cart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "1"})
	require.NoError(t, err)
	cart, err = f.svc.AddItem(ctx, identity, cart.ID, variant.ID, 2)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = f.svc.UpdateItem(ctx, identity, cart.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, "20.00", cart.Subtotal.StringFixed(2))

	_, err = f.svc.UpdateItem(ctx, identity, cart.ID, itemID, 11)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	cart, err = f.svc.UpdateItem(ctx, identity, cart.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())

	_, err = f.svc.RemoveItem(ctx, identity, cart.ID, itemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCouponAndShippingFlowIntoTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := f.variant(t, "50.00", "", 10, enums.ProductStatusActive)
	method := models.ShippingMethod{Name: "Express", Fee: decimal.RequireFromString("7.25"), IsActive: true}
	require.NoError(t, f.db.Create(&method).Error)
	identity := Identity{UserID: "1"}

	cart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "1"})
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(ctx, identity, cart.ID, "TEN")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart cannot take a coupon")

	_, err = f.svc.AddItem(ctx, identity, cart.ID, variant.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, identity, cart.ID, "ten")
	require.NoError(t, err)
	cart, err = f.svc.SetShippingMethod(ctx, identity, cart.ID, &method.ID)
	require.NoError(t, err)

	assert.Equal(t, "100.00", cart.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", cart.DiscountAmount.StringFixed(2))
	assert.Equal(t, "7.25", cart.ShippingAmount.StringFixed(2))
	assert.Equal(t, "97.25", cart.TotalAmount.StringFixed(2))
	require.NotNil(t, cart.CouponCode)
	assert.Equal(t, "TEN", *cart.CouponCode)

	cart, err = f.svc.RemoveCoupon(ctx, identity, cart.ID)
	require.NoError(t, err)
	assert.Nil(t, cart.CouponCode)
	assert.Equal(t, "107.25", cart.TotalAmount.StringFixed(2))

	cart, err = f.svc.Clear(ctx, identity, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "7.25", cart.TotalAmount.StringFixed(2), "shipping is preserved until changed")
}

func TestSetShippingMethodRejectsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	method := models.ShippingMethod{Name: "Retired", Fee: decimal.NewFromInt(3), IsActive: false}
	require.NoError(t, f.db.Create(&method).Error)
	cart, err := f.svc.GetOrCreate(ctx, Selectors{UserID: "1"})
	require.NoError(t, err)

	_, err = f.svc.SetShippingMethod(ctx, Identity{UserID: "1"}, cart.ID, &method.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyTotalsCapsDiscountAtSubtotal(t *testing.T) {
	header := &models.CartHeader{
		TaxAmount:      decimal.RequireFromString("1.50"),
		ShippingAmount: decimal.NewFromInt(5),
		DiscountAmount: decimal.NewFromInt(25),
	}
	items := []models.CartItem{{TotalPrice: decimal.NewFromInt(10)}}

	ApplyTotals(header, items)
	assert.True(t, header.DiscountAmount.Equal(decimal.NewFromInt(10)), header.DiscountAmount.String())
	assert.True(t, header.TotalAmount.Equal(decimal.RequireFromString("6.50")), header.TotalAmount.String())
	sum := header.Subtotal.Add(header.TaxAmount).Add(header.ShippingAmount).Sub(header.DiscountAmount)
	assert.True(t, sum.Equal(header.TotalAmount))

	// a discount that still fits is kept as is
	header.DiscountAmount = decimal.NewFromInt(4)
	ApplyTotals(header, items)
	assert.True(t, header.DiscountAmount.Equal(decimal.NewFromInt(4)))
	assert.True(t, header.TotalAmount.Equal(decimal.RequireFromString("12.50")))
}

func TestComputeTotalClampsAtZero(t *testing.T) {
	total := ComputeTotal(decimal.NewFromInt(10), decimal.Zero, decimal.Zero, decimal.NewFromInt(25))
	assert.True(t, total.IsZero())
}
