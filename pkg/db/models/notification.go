package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// Notification is an in-app message. Only ReadAt changes after insert.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid;index" json:"order_id,omitempty"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Kind      enums.NotificationKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Title     string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                 `gorm:"column:message;type:text;not null" json:"message"`
	Language  string                 `gorm:"column:language;type:text;not null" json:"language"`
	ReadAt    *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

// IsRead reports whether the owner has read the notification.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
