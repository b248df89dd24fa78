package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/metrics"
)

type fakeLock struct {
	held    bool
	unlocks int
	err     error
	ttl     time.Duration
	lastCtx context.Context
}

type fakeLease struct{ lock *fakeLock }

func (f *fakeLock) TryLock(ctx context.Context) (Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held {
		return nil, nil
	}
	f.held = true
	return fakeLease{lock: f}, nil
}

func (f *fakeLock) TTL() time.Duration {
	if f.ttl == 0 {
		return time.Minute
	}
	return f.ttl
}

func (l fakeLease) Unlock(ctx context.Context) error {
	l.lock.held = false
	l.lock.unlocks++
	l.lock.lastCtx = ctx
	return nil
}

type testJob struct {
	name  string
	err   error
	runs  int
	block bool
	after func()
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.after != nil {
		defer t.after()
	}
	if t.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return t.err
}

func TestRunCycleRunsEveryJobAndJoinsFailures(t *testing.T) {
	success := &testJob{name: "stale-orders"}
	failure := &testJob{name: "email-retention", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(success, failure),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email-retention: boom")
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1, lock.unlocks)
	assert.False(t, lock.held)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "stale-orders"}
	lock := &fakeLock{held: true}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.unlocks)
}

func TestRunCycleStopsAtLeaseExpiry(t *testing.T) {
	slow := &testJob{name: "slow", block: true}
	next := &testJob{name: "next"}
	lock := &fakeLock{ttl: 20 * time.Millisecond}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(slow, next), Lock: lock})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, slow.runs)
	assert.Zero(t, next.runs)
	require.Equal(t, 1, lock.unlocks)
	assert.NoError(t, lock.lastCtx.Err())
}

func TestRunCycleReportsLockErrors(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{err: errors.New("redis down")}})
	require.NoError(t, err)
	assert.ErrorContains(t, service.runCycle(context.Background()), "redis down")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &testJob{name: "stale-orders", after: cancel}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
