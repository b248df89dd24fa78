package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/driveaway-backend/api/middleware"
	"github.com/angelmondragon/driveaway-backend/api/responses"
	"github.com/angelmondragon/driveaway-backend/api/validators"
	"github.com/angelmondragon/driveaway-backend/internal/notifications"
	"github.com/angelmondragon/driveaway-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// inboxHandler resolves the caller before running fn.
func inboxHandler(svc notifications.Service, logg *logger.Logger, fn func(w http.ResponseWriter, r *http.Request, actor orders.Actor) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if err := fn(w, r, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

// ListNotifications pages the caller's inbox, newest first. Optional
// filters: order_id, kind, unread_only.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, actor orders.Actor) error {
		q := validators.ReadQuery(r)
		params := notifications.ListParams{
			UserID:     actor.UserID,
			OrderID:    q.UUID("order_id"),
			Kind:       q.String("kind"),
			UnreadOnly: q.Bool("unread_only"),
			Limit:      q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
			Cursor:     q.String("cursor"),
		}
		if err := q.Err(); err != nil {
			return err
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, page)
		return nil
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, actor orders.Actor) error {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "notificationId"), "notification id")
		if err != nil {
			return err
		}
		readAt, err := svc.MarkRead(r.Context(), actor.UserID, id)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "read_at": readAt})
		return nil
	})
}

// MarkAllNotificationsRead accepts an optional order_id to clear only that
// order's thread.
func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, actor orders.Actor) error {
		q := validators.ReadQuery(r)
		orderID := q.UUID("order_id")
		if err := q.Err(); err != nil {
			return err
		}
		updated, err := svc.MarkAllRead(r.Context(), actor.UserID, orderID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
		return nil
	})
}
