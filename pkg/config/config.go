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
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Reservation  ReservationConfig
	Checkout     CheckoutConfig
	Installments InstallmentsConfig
	Gateway      GatewayConfig
	PaymentLog   PaymentLogConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either STOREFRONT_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ReservationConfig tunes stock holds.
type ReservationConfig struct {
	TTLMinutes         int           `envconfig:"STOREFRONT_RESERVATION_TTL_MINUTES" default:"30"`
	SweepInterval      time.Duration `envconfig:"STOREFRONT_RESERVATION_SWEEP_INTERVAL" default:"5m"`
	AllowNegativeStock bool          `envconfig:"STOREFRONT_ALLOW_NEGATIVE_STOCK" default:"false"`
}

// TTL returns the reservation hold duration.
func (r ReservationConfig) TTL() time.Duration {
	if r.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.TTLMinutes) * time.Minute
}

type CheckoutConfig struct {
	OrderNumberAttempts int `envconfig:"STOREFRONT_ORDER_NUMBER_ATTEMPTS" default:"5"`
}

// InstallmentsConfig tunes credit card installment offers.
type InstallmentsConfig struct {
	MinCount                 int     `envconfig:"STOREFRONT_INSTALLMENTS_MIN" default:"1"`
	MaxCount                 int     `envconfig:"STOREFRONT_INSTALLMENTS_MAX" default:"12"`
	InterestFreeCount        int     `envconfig:"STOREFRONT_INSTALLMENTS_INTEREST_FREE" default:"3"`
	MonthlyInterestRate      float64 `envconfig:"STOREFRONT_INSTALLMENTS_MONTHLY_RATE" default:"0.0199"`
	MinInstallmentValueCents int     `envconfig:"STOREFRONT_INSTALLMENTS_MIN_VALUE_CENTS" default:"500"`
}

type GatewayConfig struct {
	Timeout                 time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"15s"`
	WebhookSecret           string        `envconfig:"STOREFRONT_GATEWAY_WEBHOOK_SECRET" required:"true"`
	WebhookToleranceSeconds int           `envconfig:"STOREFRONT_GATEWAY_WEBHOOK_TOLERANCE_SECONDS" default:"300"`
	PixExpiry               time.Duration `envconfig:"STOREFRONT_GATEWAY_PIX_EXPIRY" default:"30m"`
	BankSlipDueDays         int           `envconfig:"STOREFRONT_GATEWAY_BANK_SLIP_DUE_DAYS" default:"3"`
}

// WebhookTolerance returns the replay window for webhook timestamps.
func (g GatewayConfig) WebhookTolerance() time.Duration {
	if g.WebhookToleranceSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(g.WebhookToleranceSeconds) * time.Second
}

type PaymentLogConfig struct {
	RetentionDays int `envconfig:"STOREFRONT_PAYMENT_LOG_RETENTION_DAYS" default:"90"`
}

// Retention returns the payment log retention window.
func (p PaymentLogConfig) Retention() time.Duration {
	if p.RetentionDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

// OutboxConfig tunes the outbox event publisher.
type OutboxConfig struct {
	BatchSize    int           `envconfig:"STOREFRONT_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL" default:"2s"`
	MaxAttempts  int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}
