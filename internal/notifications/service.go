package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// Service is the owner-facing inbox.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (time.Time, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	OrderID    *uuid.UUID
	Kind       string
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// ListResult carries one page plus the owner's total unread count, which
// is independent of the filters.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
	Unread int64                 `json:"unread"`
}

type inbox struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inbox{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func requireOwner(id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return nil
}

func (s *inbox) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireOwner(params.UserID); err != nil {
		return nil, err
	}
	q := inboxQuery{
		owner:      params.UserID,
		orderID:    params.OrderID,
		unreadOnly: params.UnreadOnly,
		limit:      params.Limit,
	}
	if params.Kind != "" {
		kind, err := enums.ParseNotificationKind(params.Kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind filter")
		}
		q.kind = &kind
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q.after = after

	rows, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	page, next := pagination.Page(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	if page == nil {
		page = []models.Notification{}
	}
	return &ListResult{Items: page, Cursor: next, Unread: unread}, nil
}

func (s *inbox) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (time.Time, error) {
	if err := requireOwner(userID); err != nil {
		return time.Time{}, err
	}
	if notificationID == uuid.Nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	readAt, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return time.Time{}, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	case err != nil:
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case readAt == nil:
		return time.Time{}, pkgerrors.New(pkgerrors.CodeInternal, "notification read timestamp missing")
	}
	return readAt.UTC(), nil
}

// MarkAllRead clears the owner's unread notifications, optionally only
// those about one order.
func (s *inbox) MarkAllRead(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error) {
	if err := requireOwner(userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, userID, orderID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
