package emailqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/metrics"
)

// Priority levels. Higher is delivered sooner.
const (
	PriorityLow    = 1
	PriorityNormal = 5
	PriorityHigh   = 10
)

const (
	defaultTickInterval    = time.Second
	defaultConcurrency     = 3
	defaultMaxRetries      = 3
	defaultDeliveryTimeout = 30 * time.Second
	defaultStaleAfter      = 5 * time.Minute
)

// Message is what a transport puts on the wire.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport sends one email. Errors are retried by the queue.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Job is a submission request.
type Job struct {
	NotificationID *uuid.UUID
	To             string
	Subject        string
	Body           string
	Language       string
	Priority       int
}

// Stats is a snapshot of job counts. The four counts always sum to the
// number of jobs ever accepted and not yet purged by retention.
type Stats struct {
	Pending   int64 `json:"pending"`
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

func (s Stats) Total() int64 {
	return s.Pending + s.InFlight + s.Completed + s.Failed
}

// Options tunes the scheduler.
type Options struct {
	TickInterval    time.Duration
	Concurrency     int
	MaxRetries      int
	DeliveryTimeout time.Duration
	StaleAfter      time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = defaultDeliveryTimeout
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaultStaleAfter
	}
	return o
}

// Queue is the persisted, priority ordered, bounded email runner. At most
// Concurrency deliveries run at once in this process and a tick never
// overlaps another tick.
type Queue struct {
	store     *Store
	transport Transport
	logg      *logger.Logger
	metrics   *metrics.EmailQueueMetrics
	opts      Options

	slots   chan struct{}
	ticking atomic.Bool
	wg      sync.WaitGroup
	now     func() time.Time
}

// New builds a queue. metrics may be nil.
func New(store *Store, transport Transport, opts Options, logg *logger.Logger, m *metrics.EmailQueueMetrics) (*Queue, error) {
	if store == nil {
		return nil, errors.New("email queue store required")
	}
	if transport == nil {
		return nil, errors.New("email transport required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	opts = opts.withDefaults()
	if opts.DeliveryTimeout >= opts.StaleAfter {
		return nil, fmt.Errorf("delivery timeout %s must be shorter than stale threshold %s", opts.DeliveryTimeout, opts.StaleAfter)
	}
	return &Queue{
		store:     store,
		transport: transport,
		logg:      logg,
		metrics:   m,
		opts:      opts,
		slots:     make(chan struct{}, opts.Concurrency),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit persists a pending job. Submitting twice for the same notification
// keeps the first job; accepted reports whether a new row was written.
func (q *Queue) Submit(ctx context.Context, job Job) (accepted bool, err error) {
	to := strings.TrimSpace(job.To)
	if to == "" {
		return false, errors.New("recipient required")
	}
	priority := job.Priority
	if priority < MinPriority {
		priority = MinPriority
	}

	row := &models.EmailJob{
		NotificationID: job.NotificationID,
		Recipient:      to,
		Subject:        job.Subject,
		Body:           job.Body,
		Language:       job.Language,
		Priority:       priority,
		MaxRetries:     q.opts.MaxRetries,
		EnqueuedAt:     q.now(),
	}
	accepted, err = q.store.Insert(ctx, row)
	if err != nil {
		return false, fmt.Errorf("enqueue email: %w", err)
	}
	return accepted, nil
}

// Run ticks until ctx is cancelled, then waits for running deliveries.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.opts.TickInterval)
	defer ticker.Stop()

	q.logg.Info(q.logg.WithFields(ctx, map[string]any{
		"concurrency":   q.opts.Concurrency,
		"tick_interval": q.opts.TickInterval.String(),
	}), "email queue started")

	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			q.logg.Info(ctx, "email queue stopped")
			return nil
		case <-ticker.C:
			if err := q.Tick(ctx); err != nil {
				q.logg.Error(ctx, "email queue tick failed", err)
			}
		}
	}
}

// Tick reclaims stale work and promotes pending jobs into free delivery
// slots. A tick that starts while another is still promoting returns at once.
func (q *Queue) Tick(ctx context.Context) error {
	if !q.ticking.CompareAndSwap(false, true) {
		return nil
	}
	defer q.ticking.Store(false)

	now := q.now()
	reclaimed, err := q.store.ReclaimStale(ctx, now.Add(-q.opts.StaleAfter), now)
	if err != nil {
		return fmt.Errorf("reclaim stale email jobs: %w", err)
	}
	for _, job := range reclaimed {
		q.logg.Warn(q.jobContext(ctx, job), "reclaimed stale email job")
		if job.Status == enums.EmailJobStatusFailed {
			q.metrics.ObserveDelivery(metrics.DeliveryFailed, 0)
		} else {
			q.metrics.ObserveDelivery(metrics.DeliveryRetried, 0)
		}
	}

	free := q.acquire()
	if free > 0 {
		jobs, err := q.store.Claim(ctx, free, now)
		if err != nil {
			q.release(free)
			return fmt.Errorf("claim email jobs: %w", err)
		}
		q.release(free - len(jobs))

		deliveryCtx := context.WithoutCancel(ctx)
		for _, job := range jobs {
			q.wg.Add(1)
			go q.deliver(deliveryCtx, job)
		}
	}

	q.publishCounts(ctx)
	return nil
}

// Wait blocks until every started delivery has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Stats returns the current job counts.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	counts, err := q.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pending:   counts[enums.EmailJobStatusPending],
		InFlight:  counts[enums.EmailJobStatusInFlight],
		Completed: counts[enums.EmailJobStatusCompleted],
		Failed:    counts[enums.EmailJobStatusFailed],
	}, nil
}

func (q *Queue) deliver(ctx context.Context, job models.EmailJob) {
	defer q.wg.Done()
	defer q.release(1)

	jobCtx := q.jobContext(ctx, job)
	sendCtx, cancel := context.WithTimeout(jobCtx, q.opts.DeliveryTimeout)
	defer cancel()

	started := time.Now()
	err := q.transport.Send(sendCtx, Message{To: job.Recipient, Subject: job.Subject, Body: job.Body})
	elapsed := time.Since(started)

	if err == nil {
		if err := q.complete(jobCtx, job.ID); err != nil {
			// The row stays in_flight and is resent once reclaimed.
			q.metrics.ObserveDelivery(metrics.DeliveryUnrecorded, elapsed)
			q.logg.Error(q.logg.WithField(jobCtx, "delivery_state", "sent_unrecorded"),
				"email sent but completion not recorded, expect a duplicate", err)
			return
		}
		q.metrics.ObserveDelivery(metrics.DeliveryCompleted, elapsed)
		return
	}

	next, storeErr := q.store.Fail(jobCtx, job, err.Error(), q.now())
	if storeErr != nil {
		q.logg.Error(jobCtx, "record email delivery failure", storeErr)
		return
	}
	if next == enums.EmailJobStatusFailed {
		q.metrics.ObserveDelivery(metrics.DeliveryFailed, elapsed)
		q.logg.Error(jobCtx, "email job failed permanently", err)
		return
	}
	q.metrics.ObserveDelivery(metrics.DeliveryRetried, elapsed)
	q.logg.Warn(q.logg.WithField(jobCtx, "error", err.Error()), "email delivery failed, retrying")
}

// complete records a sent job, retrying the write once.
func (q *Queue) complete(ctx context.Context, id uuid.UUID) error {
	err := q.store.Complete(ctx, id, q.now())
	if err == nil {
		return nil
	}
	q.logg.Warn(q.logg.WithField(ctx, "error", err.Error()), "mark email job completed, retrying")
	return q.store.Complete(ctx, id, q.now())
}

// acquire takes every free delivery slot without blocking.
func (q *Queue) acquire() int {
	n := 0
	for {
		select {
		case q.slots <- struct{}{}:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) release(n int) {
	for i := 0; i < n; i++ {
		<-q.slots
	}
}

func (q *Queue) publishCounts(ctx context.Context) {
	if q.metrics == nil {
		return
	}
	counts, err := q.store.Counts(ctx)
	if err != nil {
		q.logg.Warn(q.logg.WithField(ctx, "error", err.Error()), "email queue counts unavailable")
		return
	}
	labels := make(map[string]int64, len(counts))
	for status, count := range counts {
		labels[status.String()] = count
	}
	q.metrics.SetJobCounts(labels)
}

func (q *Queue) jobContext(ctx context.Context, job models.EmailJob) context.Context {
	return q.logg.WithFields(ctx, map[string]any{
		"email_job_id": job.ID.String(),
		"retry_count":  job.RetryCount,
		"priority":     job.Priority,
	})
}
