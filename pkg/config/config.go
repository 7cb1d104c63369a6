// Package config loads every service's settings from MARKETPLACE_* variables.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Mail          MailConfig
	Ingestion     IngestionConfig
	Cron          CronConfig
	CORS          CORSConfig
}

// Load reads the environment, fills DB.DSN from the split DB variables when
// it is unset and checks value ranges envconfig cannot express.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.composeDSN()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPLACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPLACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETPLACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPLACE_DB_DSN"`
	Driver string `envconfig:"MARKETPLACE_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	// Used only when DSN is empty.
	Host     string `envconfig:"MARKETPLACE_DB_HOST"`
	Port     int    `envconfig:"MARKETPLACE_DB_PORT" default:"5432"`
	User     string `envconfig:"MARKETPLACE_DB_USER"`
	Password string `envconfig:"MARKETPLACE_DB_PASSWORD"`
	Name     string `envconfig:"MARKETPLACE_DB_NAME"`
	SSLMode  string `envconfig:"MARKETPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Queries slower than this are logged at warn.
	SlowQuery time.Duration `envconfig:"MARKETPLACE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPLACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MARKETPLACE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MARKETPLACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MARKETPLACE_JWT_EXPIRATION_MINUTES" required:"true" validate:"gt=0"`
	RefreshTokenTTLMinutes int    `envconfig:"MARKETPLACE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MARKETPLACE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MARKETPLACE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MARKETPLACE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MARKETPLACE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MARKETPLACE_ARGON_KEY_LEN" default:"32"`

	// Confirmation and reset tokens live in redis for this long.
	TokenTTL time.Duration `envconfig:"MARKETPLACE_ACCOUNT_TOKEN_TTL" default:"24h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MARKETPLACE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPLACE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MARKETPLACE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETPLACE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MARKETPLACE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETPLACE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	// EmulatorHost points the client at a local Pub/Sub emulator without credentials.
	EmulatorHost             string `envconfig:"MARKETPLACE_PUBSUB_EMULATOR_HOST"`
	NotificationTopic        string `envconfig:"MARKETPLACE_PUBSUB_NOTIFICATION_TOPIC" default:"mp-notification-events"`
	CatalogTopic             string `envconfig:"MARKETPLACE_PUBSUB_CATALOG_TOPIC" default:"mp-catalog-events"`
	NotificationSubscription string `envconfig:"MARKETPLACE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50" validate:"gte=1,lte=1000"`
	PollIntervalMS int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_POLL_MS" default:"500" validate:"gte=0"`
	MaxAttempts    int `envconfig:"MARKETPLACE_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"gte=1"`
}

type MailConfig struct {
	SMTPHost     string `envconfig:"MARKETPLACE_SMTP_HOST"`
	SMTPPort     int    `envconfig:"MARKETPLACE_SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"MARKETPLACE_SMTP_USER"`
	SMTPPassword string `envconfig:"MARKETPLACE_SMTP_PASSWORD"`
	From         string `envconfig:"MARKETPLACE_MAIL_FROM" default:"no-reply@marketplace.local"`

	// BaseURL prefixes confirmation and reset links in outgoing mail.
	BaseURL string `envconfig:"MARKETPLACE_NOTIFY_BASE_URL" default:"http://localhost:8000"`
}

type IngestionConfig struct {
	FetchTimeout time.Duration `envconfig:"MARKETPLACE_INGESTION_FETCH_TIMEOUT" default:"15s"`
	MaxBodyBytes int64         `envconfig:"MARKETPLACE_INGESTION_MAX_BODY_BYTES" default:"10485760"`
}

type CronConfig struct {
	// Schedule uses the six-field cron syntax with seconds.
	Schedule         string        `envconfig:"MARKETPLACE_CRON_SCHEDULE" default:"0 */5 * * * *"`
	OutboxRetention  time.Duration `envconfig:"MARKETPLACE_CRON_OUTBOX_RETENTION" default:"720h"`
	StaleBasketTTL   time.Duration `envconfig:"MARKETPLACE_CRON_STALE_BASKET_TTL" default:"720h"`
	StaleBasketBatch int           `envconfig:"MARKETPLACE_CRON_STALE_BASKET_BATCH" default:"500"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MARKETPLACE_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db DBConfig) composeDSN() (string, error) {
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String(), nil
}
