package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

const (
	defaultEmailRetention = 30 * 24 * time.Hour
	retentionBatch        = 500
)

type EmailRetentionJobParams struct {
	Logger    *logger.Logger
	Store     completedEmailPurger
	Retention time.Duration
}

type completedEmailPurger interface {
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewEmailRetentionJob deletes delivered email jobs older than the
// retention window. Failed jobs stay for operator follow-up.
func NewEmailRetentionJob(params EmailRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("email job store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultEmailRetention
	}
	return &emailRetentionJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type emailRetentionJob struct {
	logg      *logger.Logger
	store     completedEmailPurger
	retention time.Duration
	now       func() time.Time
}

func (j *emailRetentionJob) Name() string { return "email-retention" }

func (j *emailRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for {
		deleted, err := j.store.DeleteCompletedBefore(ctx, cutoff, retentionBatch)
		if err != nil {
			return fmt.Errorf("delete completed email jobs: %w", err)
		}
		total += deleted
		if deleted < retentionBatch {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "deleted", total), "email job retention complete")
	}
	return nil
}
