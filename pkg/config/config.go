package config

import (
	"fmt"
	"net/url"
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
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Storage       StorageConfig
	Cron          CronConfig
	Webhook       WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string   `envconfig:"UNINOTE_APP_ENV" required:"true"`
	Port          string   `envconfig:"UNINOTE_APP_PORT" required:"true"`
	LogLevel      string   `envconfig:"UNINOTE_LOG_LEVEL" default:"info"`
	LogWarnStack  bool     `envconfig:"UNINOTE_LOG_WARN_STACK" default:"false"`
	LogFormat     string   `envconfig:"UNINOTE_LOG_FORMAT" default:"json"`
	PublicBaseURL string   `envconfig:"UNINOTE_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	CORSOrigins   []string `envconfig:"UNINOTE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"UNINOTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"UNINOTE_DB_DSN"`
	Driver string `envconfig:"UNINOTE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"UNINOTE_DB_HOST"`
	Port     int    `envconfig:"UNINOTE_DB_PORT" default:"5432"`
	User     string `envconfig:"UNINOTE_DB_USER"`
	Password string `envconfig:"UNINOTE_DB_PASSWORD"`
	Name     string `envconfig:"UNINOTE_DB_NAME"`
	SSLMode  string `envconfig:"UNINOTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"UNINOTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"UNINOTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"UNINOTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"UNINOTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"UNINOTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"UNINOTE_REDIS_ADDR"`
	Password     string        `envconfig:"UNINOTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"UNINOTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UNINOTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UNINOTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UNINOTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UNINOTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UNINOTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"UNINOTE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"UNINOTE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"UNINOTE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"UNINOTE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"UNINOTE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"UNINOTE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"UNINOTE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"UNINOTE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"UNINOTE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"UNINOTE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"UNINOTE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"UNINOTE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"UNINOTE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"UNINOTE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"UNINOTE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"UNINOTE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey          string        `envconfig:"UNINOTE_STRIPE_API_KEY"`
	Secret          string        `envconfig:"UNINOTE_STRIPE_SECRET"`
	Env             string        `envconfig:"UNINOTE_STRIPE_ENV" default:"test"`
	Currency        string        `envconfig:"UNINOTE_STRIPE_CURRENCY" default:"usd"`
	SuccessURL      string        `envconfig:"UNINOTE_STRIPE_SUCCESS_URL"`
	CancelURL       string        `envconfig:"UNINOTE_STRIPE_CANCEL_URL"`
	SessionTTL      time.Duration `envconfig:"UNINOTE_STRIPE_SESSION_TTL" default:"1h"`
	WebhookEventTTL time.Duration `envconfig:"UNINOTE_STRIPE_WEBHOOK_EVENT_TTL" default:"720h"`
	RequestTimeout  time.Duration `envconfig:"UNINOTE_STRIPE_REQUEST_TIMEOUT" default:"20s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type StorageConfig struct {
	Bucket          string        `envconfig:"UNINOTE_S3_BUCKET" required:"true"`
	Region          string        `envconfig:"UNINOTE_S3_REGION" default:"us-east-1"`
	Endpoint        string        `envconfig:"UNINOTE_S3_ENDPOINT"`
	AccessKeyID     string        `envconfig:"UNINOTE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"UNINOTE_S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool          `envconfig:"UNINOTE_S3_USE_PATH_STYLE" default:"false"`
	DownloadURLTTL  time.Duration `envconfig:"UNINOTE_S3_DOWNLOAD_URL_TTL" default:"10m"`
	MaxUploadMB     int           `envconfig:"UNINOTE_MAX_UPLOAD_MB" default:"25"`
}

// MaxUploadBytes converts the configured upload cap to bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"UNINOTE_CRON_INTERVAL" default:"15m"`
	JobTimeout         time.Duration `envconfig:"UNINOTE_CRON_JOB_TIMEOUT" default:"5m"`
	ReconcileMinAge    time.Duration `envconfig:"UNINOTE_RECONCILE_MIN_AGE" default:"30m"`
	ReconcileBatchSize int           `envconfig:"UNINOTE_RECONCILE_BATCH_SIZE" default:"200"`
}

type WebhookConfig struct {
	IdempotencyScope string `envconfig:"UNINOTE_WEBHOOK_IDEMPOTENCY_SCOPE" default:"stripe-webhook"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s is %q", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
