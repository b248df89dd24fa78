package config

const (
	EnvPrefix = "DRIVEAWAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "DRIVEAWAY_APP_ENV"
	EnvPort     = "DRIVEAWAY_APP_PORT"
	EnvLogLevel = "DRIVEAWAY_LOG_LEVEL"

	EnvDBDSN  = "DRIVEAWAY_DB_DSN"
	EnvDBHost = "DRIVEAWAY_DB_HOST"
	EnvDBUser = "DRIVEAWAY_DB_USER"
	EnvDBName = "DRIVEAWAY_DB_NAME"

	EnvRedisURL = "DRIVEAWAY_REDIS_URL"

	EnvJWTSecret = "DRIVEAWAY_JWT_SECRET"
	EnvJWTIssuer = "DRIVEAWAY_JWT_ISSUER"

	EnvUseSQLite = "DRIVEAWAY_USE_SQLITE"

	EnvQueueConcurrency     = "DRIVEAWAY_QUEUE_CONCURRENCY"
	EnvQueueMaxRetries      = "DRIVEAWAY_QUEUE_MAX_RETRIES"
	EnvQueueDeliveryTimeout = "DRIVEAWAY_QUEUE_DELIVERY_TIMEOUT"
	EnvQueueStaleAfter      = "DRIVEAWAY_QUEUE_STALE_AFTER"

	EnvReaperReminderAfter = "DRIVEAWAY_REAPER_REMINDER_AFTER"
	EnvReaperCancelAfter   = "DRIVEAWAY_REAPER_CANCEL_AFTER"
)
