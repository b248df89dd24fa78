package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/driveaway-backend/api/routes"
	"github.com/angelmondragon/driveaway-backend/internal/bootstrap"
	stripewebhook "github.com/angelmondragon/driveaway-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

const (
	webhookGuardTTL = 72 * time.Hour
	shutdownTimeout = 20 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := bootstrap.Build(ctx, cfg, logg, reg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap api", err)
		os.Exit(1)
	}
	defer app.Close(context.Background(), logg)

	guard, err := stripewebhook.NewIdempotencyGuard(app.Redis, webhookGuardTTL, "stripe-event")
	if err != nil {
		logg.Error(ctx, "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:  app.Orders,
		Guard:   guard,
		Logger:  logg,
		Metrics: app.OrderMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	var background sync.WaitGroup
	if cfg.Queue.Enabled {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := app.EmailQueue.Run(ctx); err != nil {
				logg.Error(ctx, "email queue stopped unexpectedly", err)
			}
		}()
	}
	if cfg.Reaper.InProcess {
		cronService, err := app.CronService(logg, reg)
		if err != nil {
			logg.Error(ctx, "failed to create in-process cron", err)
			os.Exit(1)
		}
		background.Add(1)
		go func() {
			defer background.Done()
			if err := cronService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "in-process cron stopped unexpectedly", err)
			}
		}()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"stripe_env":  app.Stripe.Environment(),
		"queue":       cfg.Queue.Enabled,
		"cron_inproc": cfg.Reaper.InProcess,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            app.DB,
			Redis:         app.Redis,
			RateLimiter:   app.Redis,
			Gatherer:      reg,
			Catalog:       app.Catalog,
			Orders:        app.Orders,
			Notifications: app.Notifications,
			EmailQueue:    app.EmailQueue,
			Reaper:        app.StaleOrders,
			StripeWebhook: webhookService,
			StripeSecrets: app.Stripe,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(serverCtx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(serverCtx, "api server stopped unexpectedly", err)
		stop()
		background.Wait()
		os.Exit(1)
	}

	background.Wait()
	logg.Info(serverCtx, "api server shut down gracefully")
}
