// services/payment-service/internal/config/config.payment.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tanmoy095/LogiSynapse/shared/config"
)

var ErrMissingWebhookSecret = errors.New("WEBHOOK_SECRET is required")

type LoggingConfig struct {
	Level         string `mapstructure:"LOG_LEVEL"`
	Format        string `mapstructure:"LOG_FORMAT"`
	IncludeCaller bool   `mapstructure:"LOG_INCLUDE_CALLER"`
}

type GatewayConfig struct {
	BaseURL           string        `mapstructure:"GATEWAY_BASE_URL"`
	AccessToken       string        `mapstructure:"GATEWAY_ACCESS_TOKEN"`
	EntityID          string        `mapstructure:"GATEWAY_ENTITY_ID"`
	RecurringEntityID string        `mapstructure:"GATEWAY_RECURRING_ENTITY_ID"`
	Timeout           time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	MaxRetries        int           `mapstructure:"GATEWAY_MAX_RETRIES"`
}

type WebhookConfig struct {
	Secret           string        `mapstructure:"WEBHOOK_SECRET"`
	IVHeader         string        `mapstructure:"WEBHOOK_IV_HEADER"`
	SignatureHeader  string        `mapstructure:"WEBHOOK_SIGNATURE_HEADER"`
	RequireSignature bool          `mapstructure:"WEBHOOK_REQUIRE_SIGNATURE"`
	RejectUnverified bool          `mapstructure:"WEBHOOK_REJECT_UNVERIFIED"`
	DedupTTL         time.Duration `mapstructure:"WEBHOOK_DEDUP_TTL"`
	ProcessingLease  time.Duration `mapstructure:"WEBHOOK_PROCESSING_LEASE"`
	StripeSecret     string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
}

type WorkerConfig struct {
	ReconcileInterval  time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	ReconcileOlderThan time.Duration `mapstructure:"RECONCILE_OLDER_THAN"`
	ReconcileBatch     int           `mapstructure:"RECONCILE_BATCH"`
	ReconcileWorkers   int           `mapstructure:"RECONCILE_WORKERS"`
	SweepInterval      time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
}

type PaymentConfig struct {
	CommonConfig *config.CommonConfig `mapstructure:"-"` // DB, Kafka, RabbitMQ, Redis, Temporal
	Logging      LoggingConfig        `mapstructure:",squash"`
	Gateway      GatewayConfig        `mapstructure:",squash"`
	Webhook      WebhookConfig        `mapstructure:",squash"`
	Worker       WorkerConfig         `mapstructure:",squash"`

	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	SessionTTLMinutes int           `mapstructure:"SESSION_TTL_MINUTES"`
	DefaultCurrency   string        `mapstructure:"DEFAULT_CURRENCY"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"` // postgres | memory
}

var paymentKeys = []string{
	"LOG_LEVEL", "LOG_FORMAT", "LOG_INCLUDE_CALLER",
	"GATEWAY_BASE_URL", "GATEWAY_ACCESS_TOKEN", "GATEWAY_ENTITY_ID", "GATEWAY_RECURRING_ENTITY_ID",
	"GATEWAY_TIMEOUT", "GATEWAY_MAX_RETRIES",
	"WEBHOOK_SECRET", "WEBHOOK_IV_HEADER", "WEBHOOK_SIGNATURE_HEADER", "WEBHOOK_REQUIRE_SIGNATURE",
	"WEBHOOK_REJECT_UNVERIFIED", "WEBHOOK_DEDUP_TTL", "WEBHOOK_PROCESSING_LEASE", "STRIPE_WEBHOOK_SECRET",
	"RECONCILE_INTERVAL", "RECONCILE_OLDER_THAN", "RECONCILE_BATCH", "RECONCILE_WORKERS", "SESSION_SWEEP_INTERVAL",
	"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "SESSION_TTL_MINUTES", "DEFAULT_CURRENCY", "STORE_DRIVER",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("GATEWAY_TIMEOUT", 30*time.Second)
	v.SetDefault("GATEWAY_MAX_RETRIES", 2)
	v.SetDefault("WEBHOOK_IV_HEADER", "X-Initialization-Vector")
	v.SetDefault("WEBHOOK_SIGNATURE_HEADER", "X-Authentication-Tag")
	v.SetDefault("WEBHOOK_REJECT_UNVERIFIED", true)
	v.SetDefault("WEBHOOK_DEDUP_TTL", 72*time.Hour)
	v.SetDefault("WEBHOOK_PROCESSING_LEASE", 5*time.Minute)
	v.SetDefault("RECONCILE_INTERVAL", time.Minute)
	v.SetDefault("RECONCILE_OLDER_THAN", 5*time.Minute)
	v.SetDefault("RECONCILE_BATCH", 50)
	v.SetDefault("RECONCILE_WORKERS", 5)
	v.SetDefault("SESSION_SWEEP_INTERVAL", 10*time.Minute)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("SESSION_TTL_MINUTES", 25)
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("STORE_DRIVER", "postgres")
	for _, k := range paymentKeys {
		_ = v.BindEnv(k)
	}
}

// LoadConfig loads the payment service configuration from the environment and, when
// configFile is set, a YAML/JSON/TOML file whose keys use the same names.
func LoadConfig(v *viper.Viper, configFile string) (*PaymentConfig, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	common, err := config.LoadCommonConfig(v)
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	cfg := &PaymentConfig{CommonConfig: common}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode payment config: %w", err)
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *PaymentConfig) Validate() error {
	if c.Webhook.Secret == "" {
		return ErrMissingWebhookSecret
	}
	switch c.StoreDriver {
	case "postgres":
		if !c.CommonConfig.HasDB() {
			return fmt.Errorf("config: STORE_DRIVER=postgres needs DB_USER and DB_NAME")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("config: SESSION_TTL_MINUTES must be positive")
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("config: DEFAULT_CURRENCY must be an ISO 4217 code")
	}
	return nil
}
