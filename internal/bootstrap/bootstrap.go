// Package bootstrap builds the shared service graph used by cmd/api and
// cmd/cron-worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/driveaway-backend/internal/catalog"
	"github.com/angelmondragon/driveaway-backend/internal/cron"
	"github.com/angelmondragon/driveaway-backend/internal/emailqueue"
	"github.com/angelmondragon/driveaway-backend/internal/notifications"
	"github.com/angelmondragon/driveaway-backend/internal/orders"
	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/db"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/metrics"
	"github.com/angelmondragon/driveaway-backend/pkg/migrate"
	"github.com/angelmondragon/driveaway-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

// Components is the wired domain layer.
type Components struct {
	Config        *config.Config
	DB            *db.Client
	Redis         *redis.Client
	Stripe        *pkgstripe.Client
	EmailStore    *emailqueue.Store
	EmailQueue    *emailqueue.Queue
	Notifications notifications.Service
	Orders        orders.Service
	Catalog       catalog.Service
	OrderMetrics  *metrics.OrderMetrics
	StaleOrders   *cron.StaleOrderJob
	EmailCleanup  cron.Job
}

// Build connects to every dependency and wires the services. On error the
// connections opened so far are closed.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer) (_ *Components, err error) {
	c := &Components{Config: cfg}
	defer func() {
		if err != nil {
			c.Close(ctx, logg)
		}
	}()

	c.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err = migrate.MaybeRunDev(ctx, cfg, logg, c.DB); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	c.Redis, err = redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	c.Stripe, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap stripe: %w", err)
	}
	payments, err := pkgstripe.NewPaymentIntents(c.Stripe)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intents: %w", err)
	}

	c.EmailStore, err = emailqueue.NewStore(c.DB.DB())
	if err != nil {
		return nil, fmt.Errorf("email store: %w", err)
	}
	transport, err := emailqueue.NewTransport(cfg.Sendgrid, logg)
	if err != nil {
		return nil, fmt.Errorf("email transport: %w", err)
	}
	c.EmailQueue, err = emailqueue.New(c.EmailStore, transport, emailqueue.Options{
		TickInterval:    cfg.Queue.TickInterval,
		Concurrency:     cfg.Queue.Concurrency,
		MaxRetries:      cfg.Queue.MaxRetries,
		DeliveryTimeout: cfg.Queue.DeliveryTimeout,
		StaleAfter:      cfg.Queue.StaleAfter,
	}, logg, metrics.NewEmailQueueMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("email queue: %w", err)
	}

	notificationRepo := notifications.NewRepository(c.DB.DB())
	dispatcher, err := notifications.NewDispatcher(notificationRepo, notifications.NewLocalizer(cfg.Notifications.DefaultLanguage), c.EmailQueue, logg)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}
	c.Notifications, err = notifications.NewService(notificationRepo)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	c.OrderMetrics = metrics.NewOrderMetrics(reg)
	c.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(c.DB.DB()),
		Tx:       c.DB,
		Payments: payments,
		Notifier: dispatcher,
		Logger:   logg,
		Metrics:  c.OrderMetrics,
		Currency: c.Stripe.Currency(),
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	c.Catalog, err = catalog.NewService(catalog.NewRepository(c.DB.DB()), c.Stripe.Currency())
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}

	c.StaleOrders, err = cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger:        logg,
		Orders:        c.Orders,
		ReminderAfter: cfg.Reaper.ReminderAfter,
		CancelAfter:   cfg.Reaper.CancelAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("stale order job: %w", err)
	}
	c.EmailCleanup, err = cron.NewEmailRetentionJob(cron.EmailRetentionJobParams{
		Logger:    logg,
		Store:     c.EmailStore,
		Retention: cfg.Retention.CompletedEmailJobs,
	})
	if err != nil {
		return nil, fmt.Errorf("email retention job: %w", err)
	}

	return c, nil
}

// CronService schedules the reaper and email retention behind the shared
// Redis lock so only one process sweeps at a time.
func (c *Components) CronService(logg *logger.Logger, reg prometheus.Registerer) (*cron.Service, error) {
	env := c.Config.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(c.Redis, c.Redis.LockKey("cron", env), c.Config.Reaper.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(c.StaleOrders, c.EmailCleanup),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: c.Config.Reaper.Interval,
	})
}

// Close releases every open connection.
func (c *Components) Close(ctx context.Context, logg *logger.Logger) {
	var errs error
	if c.Redis != nil {
		errs = multierr.Append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = multierr.Append(errs, c.DB.Close())
	}
	if errs != nil {
		logg.Error(ctx, "error closing connections", errs)
	}
}
