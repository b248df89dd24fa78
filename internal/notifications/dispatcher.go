package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/internal/emailqueue"
	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

type emailSubmitter interface {
	Submit(ctx context.Context, job emailqueue.Job) (bool, error)
}

// Request describes one order event to tell a user about.
type Request struct {
	UserID      uuid.UUID
	OrderID     *uuid.UUID
	Kind        enums.NotificationKind
	OrderNumber string
	// Detail fills the kind specific slot of the message (amount, reason).
	Detail string
}

// Delivery is a recorded notification waiting for its email.
type Delivery struct {
	Notification models.Notification
	Recipient    string
	Priority     int
}

// Dispatcher writes in-app notifications and hands their emails to the
// queue. The record write joins the caller's transaction; the email is
// submitted only after commit and its failure never reaches the caller.
type Dispatcher struct {
	repo      Repository
	localizer *Localizer
	queue     emailSubmitter
	logg      *logger.Logger
}

func NewDispatcher(repo Repository, localizer *Localizer, queue emailSubmitter, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	if localizer == nil {
		return nil, errors.New("localizer required")
	}
	if queue == nil {
		return nil, errors.New("email queue required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Dispatcher{repo: repo, localizer: localizer, queue: queue, logg: logg}, nil
}

// Record persists the notification inside tx, localized for the user.
func (d *Dispatcher) Record(ctx context.Context, tx *gorm.DB, req Request) (*Delivery, error) {
	if req.UserID == uuid.Nil {
		return nil, errors.New("notification user required")
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("unknown notification kind %q", req.Kind)
	}

	var user models.User
	if err := tx.WithContext(ctx).Select("id", "email", "language").First(&user, "id = ?", req.UserID).Error; err != nil {
		return nil, fmt.Errorf("load notification recipient: %w", err)
	}

	tag := d.localizer.Match(user.Language)
	title, body := d.localizer.Render(tag, req.Kind, req.OrderNumber, req.Detail)

	notification := models.Notification{
		UserID:   req.UserID,
		OrderID:  req.OrderID,
		Type:     req.Kind.Type(),
		Kind:     req.Kind,
		Title:    title,
		Message:  body,
		Language: tag.String(),
	}
	if err := d.repo.WithTx(tx).Create(ctx, &notification); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	return &Delivery{
		Notification: notification,
		Recipient:    user.Email,
		Priority:     PriorityFor(req.Kind),
	}, nil
}

// Deliver submits the email for each recorded notification. Failures are
// logged; the persisted notification already informs the user.
func (d *Dispatcher) Deliver(ctx context.Context, deliveries ...*Delivery) {
	for _, delivery := range deliveries {
		if delivery == nil {
			continue
		}
		n := delivery.Notification
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"notification_id": n.ID.String(),
			"kind":            string(n.Kind),
		})
		if delivery.Recipient == "" {
			d.logg.Warn(logCtx, "notification recipient has no email address")
			continue
		}
		id := n.ID
		_, err := d.queue.Submit(ctx, emailqueue.Job{
			NotificationID: &id,
			To:             delivery.Recipient,
			Subject:        n.Title,
			Body:           n.Message + "\n\n-- DriveAway",
			Language:       n.Language,
			Priority:       delivery.Priority,
		})
		if err != nil {
			d.logg.Error(logCtx, "enqueue notification email", err)
		}
	}
}

// PriorityFor ranks payment problems above routine status updates.
func PriorityFor(kind enums.NotificationKind) int {
	switch kind {
	case enums.NotificationKindPaymentReminder, enums.NotificationKindPaymentFailed:
		return emailqueue.PriorityHigh
	case enums.NotificationKindOrderCompleted:
		return emailqueue.PriorityLow
	default:
		return emailqueue.PriorityNormal
	}
}
