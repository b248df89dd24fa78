package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// Repository stores in-app notifications. Every read and update is scoped
// to the owning user.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	Find(ctx context.Context, q inboxQuery) ([]models.Notification, error)
	CountUnread(ctx context.Context, owner uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, owner, id uuid.UUID, at time.Time) (*time.Time, error)
	MarkAllRead(ctx context.Context, owner uuid.UUID, orderID *uuid.UUID, at time.Time) (int64, error)
}

// inboxQuery asks for up to limit+1 rows so the caller can tell whether a
// further page exists.
type inboxQuery struct {
	owner      uuid.UUID
	orderID    *uuid.UUID
	kind       *enums.NotificationKind
	unreadOnly bool
	after      *pagination.Cursor
	limit      int
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) owned(ctx context.Context, owner uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", owner)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) Find(ctx context.Context, q inboxQuery) ([]models.Notification, error) {
	stmt := r.owned(ctx, q.owner)
	if q.orderID != nil {
		stmt = stmt.Where("order_id = ?", *q.orderID)
	}
	if q.kind != nil {
		stmt = stmt.Where("kind = ?", *q.kind)
	}
	if q.unreadOnly {
		stmt = stmt.Where("read_at IS NULL")
	}
	if c := q.after; c != nil {
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Notification
	err := stmt.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(q.limit)).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) CountUnread(ctx context.Context, owner uuid.UUID) (int64, error) {
	var n int64
	err := r.owned(ctx, owner).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead is idempotent: an already read row keeps its first timestamp.
// gorm.ErrRecordNotFound means the row does not exist for owner.
func (r *gormRepository) MarkRead(ctx context.Context, owner, id uuid.UUID, at time.Time) (*time.Time, error) {
	err := r.owned(ctx, owner).
		Where("id = ? AND read_at IS NULL", id).
		UpdateColumn("read_at", at).Error
	if err != nil {
		return nil, err
	}

	var row models.Notification
	if err := r.owned(ctx, owner).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return row.ReadAt, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, owner uuid.UUID, orderID *uuid.UUID, at time.Time) (int64, error) {
	stmt := r.owned(ctx, owner).Where("read_at IS NULL")
	if orderID != nil {
		stmt = stmt.Where("order_id = ?", *orderID)
	}
	res := stmt.UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}
