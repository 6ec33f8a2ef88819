package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "UNINOTE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv                 = "UNINOTE_APP_ENV"
	EnvPort                   = "UNINOTE_APP_PORT"
	EnvDBDSN                  = "UNINOTE_DB_DSN"
	EnvDBDriver               = "UNINOTE_DB_DRIVER"
	EnvDBHost                 = "UNINOTE_DB_HOST"
	EnvDBUser                 = "UNINOTE_DB_USER"
	EnvDBName                 = "UNINOTE_DB_NAME"
	EnvDBPassword             = "UNINOTE_DB_PASSWORD"
	EnvRedisURL               = "UNINOTE_REDIS_URL"
	EnvJWTSecret              = "UNINOTE_JWT_SECRET"
	EnvJWTIssuer              = "UNINOTE_JWT_ISSUER"
	EnvJWTExpMins             = "UNINOTE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "UNINOTE_REFRESH_TOKEN_TTL_MINUTES"
	EnvStripeAPIKey           = "UNINOTE_STRIPE_API_KEY"
	EnvStripeSecret           = "UNINOTE_STRIPE_SECRET"
	EnvStripeSessionTTL       = "UNINOTE_STRIPE_SESSION_TTL"
	EnvS3Bucket               = "UNINOTE_S3_BUCKET"
	EnvS3DownloadTTL          = "UNINOTE_S3_DOWNLOAD_URL_TTL"
	EnvCronInterval           = "UNINOTE_CRON_INTERVAL"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
