package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// Repository captures the persistence operations the order lifecycle needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.Payment) error

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, params listOrdersParams) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindPaymentByIntent(ctx context.Context, paymentIntentID string) (*models.Payment, error)
	FindSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	HasPendingPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FailPendingPayments(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (int64, error)

	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	LockVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	FindPackage(ctx context.Context, id uuid.UUID) (*models.Package, error)
	HasOverlappingBooking(ctx context.Context, vehicleID uuid.UUID, start, end time.Time) (bool, error)

	ListAwaitingPayment(ctx context.Context, params awaitingPaymentParams) ([]uuid.UUID, error)
	IsAwaitingPaymentSince(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error)
}

type listOrdersParams struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

type awaitingPaymentParams struct {
	Cutoff         time.Time
	UnremindedOnly bool
	Limit          int
}
