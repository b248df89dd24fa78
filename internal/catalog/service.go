package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
)

// Service exposes the public vehicle and package listings.
type Service interface {
	Vehicles(ctx context.Context, filter Filter) ([]VehicleDTO, error)
	Packages(ctx context.Context, filter Filter) ([]PackageDTO, error)
}

// VehicleDTO is a vehicle as shown to customers.
type VehicleDTO struct {
	ID          uuid.UUID       `json:"id"`
	StoreID     uuid.UUID       `json:"store_id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Seats       int             `json:"seats"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Currency    string          `json:"currency"`
}

// PackageDTO is a package as shown to customers.
type PackageDTO struct {
	ID          uuid.UUID       `json:"id"`
	StoreID     uuid.UUID       `json:"store_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Currency    string          `json:"currency"`
}

type service struct {
	repo     Repository
	currency string
}

// NewService wires the catalog. currency is the single settlement currency
// every price is quoted in.
func NewService(repo Repository, currency string) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog currency required")
	}
	return &service{repo: repo, currency: currency}, nil
}

func (s *service) Vehicles(ctx context.Context, filter Filter) ([]VehicleDTO, error) {
	rows, err := s.repo.ListVehicles(ctx, normalize(filter))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vehicles")
	}
	out := make([]VehicleDTO, 0, len(rows))
	for _, v := range rows {
		out = append(out, s.vehicleDTO(v))
	}
	return out, nil
}

func (s *service) Packages(ctx context.Context, filter Filter) ([]PackageDTO, error) {
	rows, err := s.repo.ListPackages(ctx, normalize(filter))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packages")
	}
	out := make([]PackageDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, PackageDTO{
			ID:          p.ID,
			StoreID:     p.StoreID,
			Name:        p.Name,
			Description: p.Description,
			PricePerDay: p.PricePerDay,
			Currency:    s.currency,
		})
	}
	return out, nil
}

func (s *service) vehicleDTO(v models.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:          v.ID,
		StoreID:     v.StoreID,
		Name:        v.Name,
		Brand:       v.Brand,
		Seats:       v.Seats,
		PricePerDay: v.PricePerDay,
		Currency:    s.currency,
	}
}

func normalize(filter Filter) Filter {
	filter.Limit = pagination.NormalizeLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
