package config

const (
	EnvPrefix = "MARKETPLACE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "MARKETPLACE_APP_ENV"
	EnvPort   = "MARKETPLACE_APP_PORT"

	EnvDBDSN    = "MARKETPLACE_DB_DSN"
	EnvDBDriver = "MARKETPLACE_DB_DRIVER"
	EnvDBHost   = "MARKETPLACE_DB_HOST"
	EnvDBUser   = "MARKETPLACE_DB_USER"
	EnvDBName   = "MARKETPLACE_DB_NAME"

	EnvRedisURL               = "MARKETPLACE_REDIS_URL"
	EnvJWTSecret              = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer              = "MARKETPLACE_JWT_ISSUER"
	EnvJWTExpMins             = "MARKETPLACE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MARKETPLACE_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "MARKETPLACE_GCP_PROJECT_ID"
	EnvPubSubNotificationSub  = "MARKETPLACE_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvNotifyBaseURL          = "MARKETPLACE_NOTIFY_BASE_URL"
	EnvIngestionFetchTimeout  = "MARKETPLACE_INGESTION_FETCH_TIMEOUT"
	EnvCORSAllowedOrigins     = "MARKETPLACE_CORS_ALLOWED_ORIGINS"
)
