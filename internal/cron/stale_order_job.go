package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/driveaway-backend/internal/orders"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

const (
	defaultReminderAfter = 10 * time.Minute
	defaultCancelAfter   = 30 * time.Minute
	defaultSweepBatch    = 200
)

// StaleOrderJobParams configure the unpaid order reaper.
type StaleOrderJobParams struct {
	Logger        *logger.Logger
	Orders        staleOrderService
	ReminderAfter time.Duration
	CancelAfter   time.Duration
	BatchSize     int
}

type staleOrderService interface {
	ListAwaitingPayment(ctx context.Context, staleBefore time.Time, unremindedOnly bool, limit int) ([]uuid.UUID, error)
	SendPaymentReminder(ctx context.Context, actor orders.Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error)
	ExpireOrder(ctx context.Context, actor orders.Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error)
}

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Reminded  int `json:"reminded"`
	Cancelled int `json:"cancelled"`
}

// StaleOrderJob reminds owners of unpaid orders and cancels the ones left
// unpaid past the deadline. It keeps no cursor; every decision is re-checked
// under the order's row lock, so overlapping or repeated sweeps are harmless.
type StaleOrderJob struct {
	logg          *logger.Logger
	orders        staleOrderService
	reminderAfter time.Duration
	cancelAfter   time.Duration
	batch         int
	now           func() time.Time
}

// NewStaleOrderJob builds the reaper.
func NewStaleOrderJob(params StaleOrderJobParams) (*StaleOrderJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	reminderAfter := params.ReminderAfter
	if reminderAfter <= 0 {
		reminderAfter = defaultReminderAfter
	}
	cancelAfter := params.CancelAfter
	if cancelAfter <= 0 {
		cancelAfter = defaultCancelAfter
	}
	if reminderAfter >= cancelAfter {
		return nil, fmt.Errorf("reminder threshold %s must be shorter than cancellation threshold %s", reminderAfter, cancelAfter)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &StaleOrderJob{
		logg:          params.Logger,
		orders:        params.Orders,
		reminderAfter: reminderAfter,
		cancelAfter:   cancelAfter,
		batch:         batch,
		now:           time.Now,
	}, nil
}

func (j *StaleOrderJob) Name() string { return "stale-orders" }

func (j *StaleOrderJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep cancels first so an order past both thresholds is not reminded
// moments before it is cancelled. A failure on one order does not stop the
// others; all failures are returned together.
func (j *StaleOrderJob) Sweep(ctx context.Context) (SweepResult, error) {
	now := j.now().UTC()
	actor := orders.SystemActor()
	var result SweepResult
	var errs error

	cancelBefore := now.Add(-j.cancelAfter)
	ids, err := j.orders.ListAwaitingPayment(ctx, cancelBefore, false, j.batch)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list orders to expire: %w", err))
	}
	for _, id := range ids {
		expired, err := j.orders.ExpireOrder(ctx, actor, id, cancelBefore)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
			continue
		}
		if expired {
			result.Cancelled++
		}
	}

	remindBefore := now.Add(-j.reminderAfter)
	ids, err = j.orders.ListAwaitingPayment(ctx, remindBefore, true, j.batch)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list orders to remind: %w", err))
	}
	for _, id := range ids {
		sent, err := j.orders.SendPaymentReminder(ctx, actor, id, remindBefore)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remind order %s: %w", id, err))
			continue
		}
		if sent {
			result.Reminded++
		}
	}

	if result.Reminded > 0 || result.Cancelled > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"reminded":  result.Reminded,
			"cancelled": result.Cancelled,
		}), "stale order sweep complete")
	}
	return result, errs
}
