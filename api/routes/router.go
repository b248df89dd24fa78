package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/driveaway-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/driveaway-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/driveaway-backend/api/controllers/webhooks"
	"github.com/angelmondragon/driveaway-backend/api/middleware"
	"github.com/angelmondragon/driveaway-backend/internal/catalog"
	"github.com/angelmondragon/driveaway-backend/internal/cron"
	"github.com/angelmondragon/driveaway-backend/internal/emailqueue"
	"github.com/angelmondragon/driveaway-backend/internal/notifications"
	"github.com/angelmondragon/driveaway-backend/internal/orders"
	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

type paymentWebhook interface {
	HandleEvent(ctx context.Context, event *pkgstripe.PaymentEvent) (orders.Outcome, error)
}

type emailQueue interface {
	Stats(ctx context.Context) (emailqueue.Stats, error)
}

type reaper interface {
	Sweep(ctx context.Context) (cron.SweepResult, error)
}

type signingSecret interface {
	SigningSecret() string
}

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	RateLimiter   redis.RateLimiter
	Gatherer      prometheus.Gatherer
	Catalog       catalog.Service
	Orders        orders.Service
	Notifications notifications.Service
	EmailQueue    emailQueue
	Reaper        reaper
	StripeWebhook paymentWebhook
	StripeSecrets signingSecret
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	bookingPolicy := middleware.RateLimitPolicy{
		Name:   "booking",
		Window: cfg.RateLimit.BookingWindow,
		Limit:  cfg.RateLimit.BookingLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeSecrets, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/vehicles", controllers.CatalogVehicles(p.Catalog, logg))
		r.Get("/packages", controllers.CatalogPackages(p.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(bookingPolicy, p.RateLimiter, logg)).
				Post("/", ordercontrollers.Create(p.Orders, logg))
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Post("/{orderId}/checkout", ordercontrollers.Checkout(p.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleOperator, enums.UserRoleAdmin))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/start", ordercontrollers.AdminStart(p.Orders, logg))
			r.Post("/complete", ordercontrollers.AdminComplete(p.Orders, logg))
			r.Post("/refund", ordercontrollers.AdminRefund(p.Orders, logg))
			r.Post("/cancel", ordercontrollers.AdminCancel(p.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/email-queue/stats", ordercontrollers.EmailQueueStats(p.EmailQueue, logg))
			r.Post("/reaper/sweep", ordercontrollers.ReaperSweep(p.Reaper, logg))
		})
	})

	return r
}
