package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

type fakePurger struct {
	remaining int64
	cutoffs   []time.Time
	err       error
}

func (f *fakePurger) DeleteCompletedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cutoffs = append(f.cutoffs, cutoff)
	n := f.remaining
	if n > int64(limit) {
		n = int64(limit)
	}
	f.remaining -= n
	return n, nil
}

func TestEmailRetentionDeletesInBatches(t *testing.T) {
	purger := &fakePurger{remaining: retentionBatch*2 + 7}
	job, err := NewEmailRetentionJob(EmailRetentionJobParams{Logger: logger.Nop(), Store: purger, Retention: 24 * time.Hour})
	require.NoError(t, err)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	job.(*emailRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, purger.remaining)
	require.Len(t, purger.cutoffs, 3)
	assert.Equal(t, now.Add(-24*time.Hour), purger.cutoffs[0])
	assert.Equal(t, "email-retention", job.Name())
}

func TestEmailRetentionSurfacesStoreErrors(t *testing.T) {
	job, err := NewEmailRetentionJob(EmailRetentionJobParams{Logger: logger.Nop(), Store: &fakePurger{err: errors.New("db down")}})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}
