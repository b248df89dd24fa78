package orders

import (
	"context"
	"net/http"

	"github.com/angelmondragon/driveaway-backend/api/responses"
	"github.com/angelmondragon/driveaway-backend/internal/cron"
	"github.com/angelmondragon/driveaway-backend/internal/emailqueue"
	internalorders "github.com/angelmondragon/driveaway-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

// AdminStart hands a CONFIRMED order's vehicle to the customer.
func AdminStart(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.MarkOngoing)
}

// AdminComplete closes an ONGOING rental.
func AdminComplete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.MarkCompleted)
}

// AdminRefund refunds the settled payment of a CONFIRMED order.
func AdminRefund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.Refund)
}

// AdminCancel cancels as staff; the customer gets the user-cancellation notice.
func AdminCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.CancelOrder)
}

type queueStats interface {
	Stats(ctx context.Context) (emailqueue.Stats, error)
}

// EmailQueueStats reports the persisted email job counts.
func EmailQueueStats(queue queueStats, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email queue unavailable"))
			return
		}
		stats, err := queue.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "email queue stats"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"pending":   stats.Pending,
			"in_flight": stats.InFlight,
			"completed": stats.Completed,
			"failed":    stats.Failed,
			"total":     stats.Total(),
		})
	}
}

type sweeper interface {
	Sweep(ctx context.Context) (cron.SweepResult, error)
}

// ReaperSweep runs one stale-order sweep on demand. Partial progress of a
// failed sweep is logged with the error.
func ReaperSweep(reaper sweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reaper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reaper unavailable"))
			return
		}
		result, err := reaper.Sweep(r.Context())
		if err != nil {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"reminded": result.Reminded, "cancelled": result.Cancelled})
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stale order sweep"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}
