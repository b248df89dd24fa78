package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// Order is one rental transaction. Exactly one of VehicleID and PackageID is
// set. TotalAmount is fixed at creation; only Status and the lifecycle
// timestamps change afterwards.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string            `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID           uuid.UUID         `gorm:"column:store_id;type:uuid;not null;index"`
	VehicleID         *uuid.UUID        `gorm:"column:vehicle_id;type:uuid;index"`
	PackageID         *uuid.UUID        `gorm:"column:package_id;type:uuid"`
	StartDate         time.Time         `gorm:"column:start_date;not null"`
	EndDate           time.Time         `gorm:"column:end_date;not null"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency          string            `gorm:"column:currency;type:text;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;index"`
	PaymentIntentID   *string           `gorm:"column:payment_intent_id;type:text;index"`
	ReminderSentAt    *time.Time        `gorm:"column:reminder_sent_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	CancellationActor *string           `gorm:"column:cancellation_actor;type:text"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Payments []Payment `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
