package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// Payment is one attempt to pay for an order. An order has at most one
// SUCCESS payment, enforced by a partial unique index in postgres.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string              `gorm:"column:currency;type:text;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id;type:text;uniqueIndex"`
	ClientSecret    *string             `gorm:"column:client_secret;type:text"`
	ChargeID        *string             `gorm:"column:charge_id;type:text"`
	FailureReason   *string             `gorm:"column:failure_reason;type:text"`
	SettledAt       *time.Time          `gorm:"column:settled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
