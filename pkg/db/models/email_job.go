package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// EmailJob is a persisted unit of outbound email work.
type EmailJob struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	NotificationID *uuid.UUID           `gorm:"column:notification_id;type:uuid;uniqueIndex"`
	Recipient      string               `gorm:"column:recipient;type:text;not null"`
	Subject        string               `gorm:"column:subject;type:text;not null"`
	Body           string               `gorm:"column:body;type:text;not null"`
	Language       string               `gorm:"column:language;type:text;not null"`
	Priority       int                  `gorm:"column:priority;not null;index:idx_email_jobs_claim,priority:2"`
	Status         enums.EmailJobStatus `gorm:"column:status;type:text;not null;index:idx_email_jobs_claim,priority:1"`
	RetryCount     int                  `gorm:"column:retry_count;not null;default:0"`
	MaxRetries     int                  `gorm:"column:max_retries;not null"`
	LastError      *string              `gorm:"column:last_error;type:text"`
	EnqueuedAt     time.Time            `gorm:"column:enqueued_at;not null;index:idx_email_jobs_claim,priority:3"`
	ClaimedAt      *time.Time           `gorm:"column:claimed_at"`
	FinishedAt     *time.Time           `gorm:"column:finished_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns a time-ordered id so jobs enqueued at the same instant
// still sort in submission order.
func (j *EmailJob) BeforeCreate(*gorm.DB) error {
	if j.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	j.ID = id
	return nil
}
