package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "COURSEPATH_DB_DSN"
	EnvDBHost = "COURSEPATH_DB_HOST"
	EnvDBUser = "COURSEPATH_DB_USER"
	EnvDBName = "COURSEPATH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Webhook      WebhookConfig
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
	Env          string `envconfig:"COURSEPATH_APP_ENV" required:"true"`
	Port         string `envconfig:"COURSEPATH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COURSEPATH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURSEPATH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COURSEPATH_DB_DSN"`
	Driver string `envconfig:"COURSEPATH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURSEPATH_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSEPATH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSEPATH_DB_USER"`
	LegacyPassword string `envconfig:"COURSEPATH_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSEPATH_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSEPATH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURSEPATH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSEPATH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSEPATH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSEPATH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSEPATH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COURSEPATH_REDIS_ADDR"`
	Password     string        `envconfig:"COURSEPATH_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSEPATH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSEPATH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSEPATH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSEPATH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSEPATH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSEPATH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COURSEPATH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COURSEPATH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COURSEPATH_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COURSEPATH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COURSEPATH_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey      string        `envconfig:"COURSEPATH_STRIPE_API_KEY"`
	Secret      string        `envconfig:"COURSEPATH_STRIPE_WEBHOOK_SECRET"`
	Env         string        `envconfig:"COURSEPATH_STRIPE_ENV" default:"test"`
	CallTimeout time.Duration `envconfig:"COURSEPATH_STRIPE_CALL_TIMEOUT" default:"15s"`
	SuccessURL  string        `envconfig:"COURSEPATH_CHECKOUT_SUCCESS_URL"`
	CancelURL   string        `envconfig:"COURSEPATH_CHECKOUT_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"COURSEPATH_PUBSUB_PROJECT_ID"`
	GrantsTopic        string `envconfig:"COURSEPATH_PUBSUB_GRANTS_TOPIC" default:"cp-grant-events"`
	GrantsSubscription string `envconfig:"COURSEPATH_PUBSUB_GRANTS_SUBSCRIPTION"`
	EmulatorHost       string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COURSEPATH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COURSEPATH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COURSEPATH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"COURSEPATH_CRON_INTERVAL" default:"1h"`
	PeriodEndGrace time.Duration `envconfig:"COURSEPATH_PERIOD_END_GRACE" default:"6h"`
	BatchLimit     int           `envconfig:"COURSEPATH_CRON_BATCH_LIMIT" default:"250"`
}

type WebhookConfig struct {
	EventDedupeTTL time.Duration `envconfig:"COURSEPATH_WEBHOOK_EVENT_DEDUPE_TTL" default:"168h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
