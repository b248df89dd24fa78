package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	Queue         QueueConfig
	Reaper        ReaperConfig
	Retention     RetentionConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Queue.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Reaper.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRIVEAWAY_APP_ENV" required:"true"`
	Port         string `envconfig:"DRIVEAWAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DRIVEAWAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRIVEAWAY_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"DRIVEAWAY_LOG_FORMAT" default:"json"`

	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"DRIVEAWAY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DRIVEAWAY_SERVICE_KIND" default:"api"`
}

// DBConfig takes a full DSN, or the discrete parts managed platforms inject.
type DBConfig struct {
	DSN string `envconfig:"DRIVEAWAY_DB_DSN"`

	Host     string `envconfig:"DRIVEAWAY_DB_HOST"`
	Port     int    `envconfig:"DRIVEAWAY_DB_PORT" default:"5432"`
	User     string `envconfig:"DRIVEAWAY_DB_USER"`
	Password string `envconfig:"DRIVEAWAY_DB_PASSWORD"`
	Name     string `envconfig:"DRIVEAWAY_DB_NAME"`
	SSLMode  string `envconfig:"DRIVEAWAY_DB_SSLMODE" default:"disable"`

	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"DRIVEAWAY_DB_SLOW_QUERY" default:"500ms"`

	MaxOpenConns    int           `envconfig:"DRIVEAWAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRIVEAWAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRIVEAWAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRIVEAWAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRIVEAWAY_REDIS_URL"`
	Address      string        `envconfig:"DRIVEAWAY_REDIS_ADDR"`
	Password     string        `envconfig:"DRIVEAWAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRIVEAWAY_REDIS_DB" default:"0"`
	Namespace    string        `envconfig:"DRIVEAWAY_REDIS_NAMESPACE" default:"da"`
	PoolSize     int           `envconfig:"DRIVEAWAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRIVEAWAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRIVEAWAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRIVEAWAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRIVEAWAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DRIVEAWAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DRIVEAWAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DRIVEAWAY_JWT_EXPIRATION_MINUTES" default:"60"`

	// Leeway absorbs clock drift between the identity service and the API.
	Leeway time.Duration `envconfig:"DRIVEAWAY_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DRIVEAWAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DRIVEAWAY_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"DRIVEAWAY_STRIPE_API_KEY"`
	Secret   string `envconfig:"DRIVEAWAY_STRIPE_SECRET"`
	Env      string `envconfig:"DRIVEAWAY_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"DRIVEAWAY_STRIPE_CURRENCY" default:"jpy"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"DRIVEAWAY_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"DRIVEAWAY_SENDGRID_FROM_EMAIL" default:"no-reply@driveaway.example"`
	FromName    string `envconfig:"DRIVEAWAY_SENDGRID_FROM_NAME" default:"DriveAway"`
}

// Enabled reports whether outbound mail should go through SendGrid.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type QueueConfig struct {
	TickInterval    time.Duration `envconfig:"DRIVEAWAY_QUEUE_TICK_INTERVAL" default:"1s"`
	Concurrency     int           `envconfig:"DRIVEAWAY_QUEUE_CONCURRENCY" default:"3"`
	MaxRetries      int           `envconfig:"DRIVEAWAY_QUEUE_MAX_RETRIES" default:"3"`
	DeliveryTimeout time.Duration `envconfig:"DRIVEAWAY_QUEUE_DELIVERY_TIMEOUT" default:"30s"`
	StaleAfter      time.Duration `envconfig:"DRIVEAWAY_QUEUE_STALE_AFTER" default:"5m"`
	Enabled         bool          `envconfig:"DRIVEAWAY_QUEUE_ENABLED" default:"true"`
}

// validate keeps a running delivery from being reclaimed, and sent again,
// before its own timeout fires.
func (q QueueConfig) validate() error {
	if q.DeliveryTimeout <= 0 || q.StaleAfter <= 0 {
		return fmt.Errorf("queue delivery timeout and stale threshold must be positive")
	}
	if q.DeliveryTimeout >= q.StaleAfter {
		return fmt.Errorf("%s must be shorter than %s", EnvQueueDeliveryTimeout, EnvQueueStaleAfter)
	}
	return nil
}

type ReaperConfig struct {
	Interval      time.Duration `envconfig:"DRIVEAWAY_REAPER_INTERVAL" default:"1m"`
	ReminderAfter time.Duration `envconfig:"DRIVEAWAY_REAPER_REMINDER_AFTER" default:"10m"`
	CancelAfter   time.Duration `envconfig:"DRIVEAWAY_REAPER_CANCEL_AFTER" default:"30m"`
	LockTTL       time.Duration `envconfig:"DRIVEAWAY_REAPER_LOCK_TTL" default:"5m"`
	InProcess     bool          `envconfig:"DRIVEAWAY_REAPER_IN_PROCESS" default:"false"`
}

func (r ReaperConfig) validate() error {
	if r.ReminderAfter <= 0 || r.CancelAfter <= 0 {
		return fmt.Errorf("reaper thresholds must be positive")
	}
	if r.ReminderAfter >= r.CancelAfter {
		return fmt.Errorf("%s must be shorter than %s", EnvReaperReminderAfter, EnvReaperCancelAfter)
	}
	return nil
}

type RetentionConfig struct {
	CompletedEmailJobs time.Duration `envconfig:"DRIVEAWAY_RETENTION_COMPLETED_EMAIL_JOBS" default:"720h"`
}

type NotificationsConfig struct {
	DefaultLanguage string `envconfig:"DRIVEAWAY_NOTIFICATIONS_DEFAULT_LANGUAGE" default:"en"`
}

type RateLimitConfig struct {
	BookingWindow time.Duration `envconfig:"DRIVEAWAY_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimit  int           `envconfig:"DRIVEAWAY_RATE_LIMIT_BOOKING_LIMIT" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:driveaway.db?cache=shared"
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}

	db.DSN = u.String()
	return nil
}
