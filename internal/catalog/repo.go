package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
)

// Repository reads the bookable inventory.
type Repository interface {
	ListVehicles(ctx context.Context, filter Filter) ([]models.Vehicle, error)
	ListPackages(ctx context.Context, filter Filter) ([]models.Package, error)
}

// Filter narrows a catalog listing. Only active rows are ever returned.
type Filter struct {
	StoreID  *uuid.UUID
	MinSeats int
	Limit    int
	Offset   int
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the catalog repository to a gorm connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListVehicles(ctx context.Context, filter Filter) ([]models.Vehicle, error) {
	query := r.db.WithContext(ctx).Model(&models.Vehicle{}).Where("is_active = ?", true)
	if filter.StoreID != nil {
		query = query.Where("store_id = ?", *filter.StoreID)
	}
	if filter.MinSeats > 0 {
		query = query.Where("seats >= ?", filter.MinSeats)
	}
	var rows []models.Vehicle
	err := query.Order("price_per_day ASC").Order("id ASC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListPackages(ctx context.Context, filter Filter) ([]models.Package, error) {
	query := r.db.WithContext(ctx).Model(&models.Package{}).Where("is_active = ?", true)
	if filter.StoreID != nil {
		query = query.Where("store_id = ?", *filter.StoreID)
	}
	var rows []models.Package
	err := query.Order("price_per_day ASC").Order("id ASC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&rows).Error
	return rows, err
}
