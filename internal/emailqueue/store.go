package emailqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/driveaway-backend/pkg/db"
	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// MinPriority is the floor retried jobs age down to.
const MinPriority = 0

// Store persists email jobs. Every status change is a single conditional
// update so two processes can never both finish the same attempt.
type Store struct {
	db *gorm.DB
}

// NewStore binds the store to a database handle.
func NewStore(conn *gorm.DB) (*Store, error) {
	if conn == nil {
		return nil, errors.New("email queue db required")
	}
	return &Store{db: conn}, nil
}

// Insert stores a pending job. A job already recorded for the same
// notification is left alone and inserted reports false.
func (s *Store) Insert(ctx context.Context, job *models.EmailJob) (bool, error) {
	job.Status = enums.EmailJobStatusPending
	q := s.db.WithContext(ctx)
	if job.NotificationID != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		})
	}
	res := q.Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Claim moves up to limit pending jobs to in_flight, highest priority first
// and oldest first within a priority.
func (s *Store) Claim(ctx context.Context, limit int, now time.Time) ([]models.EmailJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	var jobs []models.EmailJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdateSkipLocked(tx).
			Where("status = ?", enums.EmailJobStatusPending).
			Order("priority DESC, enqueued_at ASC, id ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(jobs))
		for i := range jobs {
			ids[i] = jobs[i].ID
			jobs[i].Status = enums.EmailJobStatusInFlight
			jobs[i].ClaimedAt = &now
		}
		return tx.Model(&models.EmailJob{}).
			Where("id IN ? AND status = ?", ids, enums.EmailJobStatusPending).
			Updates(map[string]any{
				"status":     enums.EmailJobStatusInFlight,
				"claimed_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Complete marks an in-flight job delivered.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.EmailJob{}).
		Where("id = ? AND status = ?", id, enums.EmailJobStatusInFlight).
		Updates(map[string]any{
			"status":      enums.EmailJobStatusCompleted,
			"finished_at": now,
			"last_error":  nil,
		}).Error
}

// Fail records a failed attempt on an in-flight job and returns the status
// the job moved to.
func (s *Store) Fail(ctx context.Context, job models.EmailJob, cause string, now time.Time) (enums.EmailJobStatus, error) {
	next, updates := failedAttempt(job, cause, now)
	err := s.db.WithContext(ctx).
		Model(&models.EmailJob{}).
		Where("id = ? AND status = ?", job.ID, enums.EmailJobStatusInFlight).
		Updates(updates).Error
	return next, err
}

// ReclaimStale applies the failure rule to in-flight jobs claimed before
// cutoff. Their worker is presumed dead.
func (s *Store) ReclaimStale(ctx context.Context, cutoff, now time.Time) ([]models.EmailJob, error) {
	var stale []models.EmailJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdateSkipLocked(tx).
			Where("status = ? AND claimed_at < ?", enums.EmailJobStatusInFlight, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}
		for i := range stale {
			next, updates := failedAttempt(stale[i], "delivery abandoned", now)
			if err := tx.Model(&models.EmailJob{}).
				Where("id = ? AND status = ?", stale[i].ID, enums.EmailJobStatusInFlight).
				Updates(updates).Error; err != nil {
				return err
			}
			stale[i].Status = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// Counts returns the number of jobs per status. Every status is present.
func (s *Store) Counts(ctx context.Context) (map[enums.EmailJobStatus]int64, error) {
	var rows []struct {
		Status enums.EmailJobStatus
		Total  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.EmailJob{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[enums.EmailJobStatus]int64{
		enums.EmailJobStatusPending:   0,
		enums.EmailJobStatusInFlight:  0,
		enums.EmailJobStatusCompleted: 0,
		enums.EmailJobStatusFailed:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// DeleteCompletedBefore drops delivered jobs finished before cutoff. Failed
// jobs are kept for operators.
func (s *Store) DeleteCompletedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	sub := s.db.Model(&models.EmailJob{}).
		Select("id").
		Where("status = ? AND finished_at < ?", enums.EmailJobStatusCompleted, cutoff).
		Order("finished_at ASC").
		Limit(limit)
	res := s.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Delete(&models.EmailJob{})
	return res.RowsAffected, res.Error
}

// failedAttempt applies the retry rule: a job with retries left goes back to
// pending one priority level lower, otherwise it is failed for good.
func failedAttempt(job models.EmailJob, cause string, now time.Time) (enums.EmailJobStatus, map[string]any) {
	if job.RetryCount >= job.MaxRetries {
		return enums.EmailJobStatusFailed, map[string]any{
			"status":      enums.EmailJobStatusFailed,
			"last_error":  cause,
			"finished_at": now,
		}
	}

	priority := job.Priority - 1
	if priority < MinPriority {
		priority = MinPriority
	}
	return enums.EmailJobStatusPending, map[string]any{
		"status":      enums.EmailJobStatusPending,
		"retry_count": job.RetryCount + 1,
		"priority":    priority,
		"last_error":  cause,
		"enqueued_at": now,
		"claimed_at":  nil,
	}
}
