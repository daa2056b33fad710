package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the orders, order_items and
// payments tables. Checkout and settlement bind it to their own transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Payment, error)
	LockPayment(ctx context.Context, orderID uuid.UUID, transactionID string) (*models.Payment, error)
	LockPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
}
