package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

func TestListStaleUnpaidSelectsOldOnlineOrders(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	variant := seedVariant(t, db, 5)
	lines := map[models.ProductVariant]int{variant: 1}

	old := time.Now().UTC().Add(-48 * time.Hour)
	stale := seedOrder(t, db, enums.OrderStatusPending, lines)
	cod := seedOrder(t, db, enums.OrderStatusPending, lines)
	paid := seedOrder(t, db, enums.OrderStatusPending, lines)
	fresh := seedOrder(t, db, enums.OrderStatusPending, lines)

	require.NoError(t, db.Model(&models.Order{}).Where("id IN ?", []any{stale.ID, paid.ID, fresh.ID}).
		Update("payment_method", enums.PaymentMethodVNPay).Error)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", paid.ID).
		Update("payment_status", enums.OrderPaymentStatusPaid).Error)
	require.NoError(t, db.Model(&models.Order{}).Where("id IN ?", []any{stale.ID, cod.ID, paid.ID}).
		UpdateColumn("created_at", old).Error)

	rows, err := repo.ListStaleUnpaid(context.Background(), time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}
