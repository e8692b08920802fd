package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Pricing      PricingConfig
	Licensing    LicensingConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COURSELOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"COURSELOOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COURSELOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURSELOOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN             string        `envconfig:"COURSELOOP_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"COURSELOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSELOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSELOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSELOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSELOOP_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"COURSELOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSELOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSELOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSELOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSELOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COURSELOOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COURSELOOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COURSELOOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type StripeConfig struct {
	APIKey        string `envconfig:"COURSELOOP_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"COURSELOOP_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"COURSELOOP_STRIPE_ENV" default:"test"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

// PricingConfig carries the tunables of the license pricing engine. Defaults mirror
// the platform-wide volume discount ladder: 10% at 10 seats, 20% at 20, 30% at 50.
type PricingConfig struct {
	DefaultTiers        string `envconfig:"COURSELOOP_PRICING_DEFAULT_TIERS" default:"10:10,20:20,50:30"`
	UnlimitedMultiplier int    `envconfig:"COURSELOOP_PRICING_UNLIMITED_MULTIPLIER" default:"10"`
}

type LicensingConfig struct {
	TermDays          int `envconfig:"COURSELOOP_LICENSE_TERM_DAYS" default:"365"`
	ExpiryWarningDays int `envconfig:"COURSELOOP_LICENSE_EXPIRY_WARNING_DAYS" default:"14"`
}

// Term returns the license validity window applied at payment confirmation.
func (l LicensingConfig) Term() time.Duration {
	days := l.TermDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

type CheckoutConfig struct {
	SuccessURL string `envconfig:"COURSELOOP_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string `envconfig:"COURSELOOP_CHECKOUT_CANCEL_URL" required:"true"`
}

type CronConfig struct {
	LicenseSweepInterval time.Duration `envconfig:"COURSELOOP_CRON_LICENSE_SWEEP_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COURSELOOP_AUTO_MIGRATE" default:"false"`
}
