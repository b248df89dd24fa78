package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/driveaway-backend/api/middleware"
	"github.com/angelmondragon/driveaway-backend/api/responses"
	"github.com/angelmondragon/driveaway-backend/api/validators"
	internalorders "github.com/angelmondragon/driveaway-backend/internal/orders"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

type createOrderRequest struct {
	VehicleID *uuid.UUID `json:"vehicle_id"`
	PackageID *uuid.UUID `json:"package_id"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   time.Time  `json:"end_date" validate:"required"`
}

// Create books a vehicle or package and opens the first payment attempt.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrReject(w, r, svc, logg)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		checkout, err := svc.CreateOrder(r.Context(), actor, internalorders.CreateOrderInput{
			VehicleID: req.VehicleID,
			PackageID: req.PackageID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkout)
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrReject(w, r, svc, logg)
		if !ok {
			return
		}

		q := validators.ReadQuery(r)
		params := internalorders.ListParams{
			UserID: actor.UserID,
			Limit:  q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
			Cursor: q.String("cursor"),
		}
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := q.String("status"); raw != "" {
			status, err := enums.ParseOrderStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		list, err := svc.ListForUser(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its payment attempts.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.Get)
}

// Cancel cancels a PENDING or CONFIRMED order on behalf of its owner or staff.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, internalorders.Service.CancelOrder)
}

// Checkout opens a fresh payment attempt after a failed one.
func Checkout(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrReject(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		checkout, err := svc.RetryCheckout(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkout)
	}
}

type orderFn func(svc internalorders.Service, ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderView, error)

// orderAction runs fn for the {orderId} path parameter. The order service
// applies the capability policy; handlers only supply the actor.
func orderAction(svc internalorders.Service, logg *logger.Logger, fn orderFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrReject(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		view, err := fn(svc, ctx, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func actorOrReject(w http.ResponseWriter, r *http.Request, svc internalorders.Service, logg *logger.Logger) (internalorders.Actor, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return internalorders.Actor{}, false
	}
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return internalorders.Actor{}, false
	}
	return actor, true
}
