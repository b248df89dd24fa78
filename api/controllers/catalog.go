package controllers

import (
	"net/http"

	"github.com/angelmondragon/driveaway-backend/api/responses"
	"github.com/angelmondragon/driveaway-backend/api/validators"
	"github.com/angelmondragon/driveaway-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// CatalogVehicles lists active vehicles, cheapest first.
func CatalogVehicles(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		filter, err := catalogFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := validators.ReadQuery(r)
		filter.MinSeats = q.Int("min_seats", 0, 0, 20)
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.Vehicles(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// CatalogPackages lists active packages, cheapest first.
func CatalogPackages(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		filter, err := catalogFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Packages(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func catalogFilter(r *http.Request) (catalog.Filter, error) {
	q := validators.ReadQuery(r)
	filter := catalog.Filter{
		StoreID: q.UUID("store_id"),
		Limit:   q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
		Offset:  q.Int("offset", 0, 0, 10000),
	}
	return filter, q.Err()
}
