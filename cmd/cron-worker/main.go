package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/driveaway-backend/internal/bootstrap"
	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

const serviceKind = "cron-worker"

// The worker runs the reaper and email drain on their own schedule, outside
// the API process. It exposes only /metrics.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).
			Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": serviceKind})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron_worker.stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron_worker.shutdown")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	reg := prometheus.NewRegistry()
	app, err := bootstrap.Build(ctx, cfg, logg, reg)
	if err != nil {
		return err
	}
	defer app.Close(context.Background(), logg)

	service, err := app.CronService(logg, reg)
	if err != nil {
		return err
	}

	if cfg.App.Port != "" {
		srv := &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "cron_worker.metrics_server_failed", err)
			}
		}()
		defer srv.Close()
	}

	logg.Info(ctx, "cron_worker.started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
