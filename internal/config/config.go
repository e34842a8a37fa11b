package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Auth      AuthConfig
	Checkout  CheckoutConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	DSN    string
	Seed   bool
}

type StorageConfig struct {
	Driver string // memory, gorm or redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL string // empty disables AMQP, changes stay in-process
}

type AuthConfig struct {
	Mode        string // database or static
	JWTSecret   string
	TokenTTL    time.Duration
	Latency     time.Duration
	SessionIdle time.Duration // unused device sessions are dropped after this
}

type CheckoutConfig struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	Currency              string
}

type CatalogConfig struct {
	Locale string
}

type RateLimitConfig struct {
	AuthPerSecond float64
	AuthBurst     int
}

// Load reads configuration from .env, an optional config.yaml and the
// environment. Nested keys map to env vars with "_", e.g. DATABASE_DSN.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "veggiemarket.db")
	v.SetDefault("database.seed", true)
	v.SetDefault("storage.driver", "gorm")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("auth.mode", "database")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.latency", "0s")
	v.SetDefault("auth.session_idle", "30m")
	v.SetDefault("checkout.tax_rate", "0.18")
	v.SetDefault("checkout.free_shipping_threshold", "1000")
	v.SetDefault("checkout.flat_shipping_fee", "50")
	v.SetDefault("checkout.currency", "INR")
	v.SetDefault("catalog.locale", "en")
	v.SetDefault("ratelimit.auth_per_second", 2)
	v.SetDefault("ratelimit.auth_burst", 5)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App:      AppConfig{Port: v.GetString("app.port"), Env: v.GetString("app.env")},
		Database: DatabaseConfig{Driver: v.GetString("database.driver"), DSN: v.GetString("database.dsn"), Seed: v.GetBool("database.seed")},
		Storage:  StorageConfig{Driver: v.GetString("storage.driver")},
		Redis:    RedisConfig{Addr: v.GetString("redis.addr"), Password: v.GetString("redis.password"), DB: v.GetInt("redis.db")},
		RabbitMQ: RabbitMQConfig{URL: v.GetString("rabbitmq.url")},
		Auth: AuthConfig{
			Mode:        v.GetString("auth.mode"),
			JWTSecret:   v.GetString("auth.jwt_secret"),
			TokenTTL:    v.GetDuration("auth.token_ttl"),
			Latency:     v.GetDuration("auth.latency"),
			SessionIdle: v.GetDuration("auth.session_idle"),
		},
		Catalog: CatalogConfig{Locale: v.GetString("catalog.locale")},
		RateLimit: RateLimitConfig{
			AuthPerSecond: v.GetFloat64("ratelimit.auth_per_second"),
			AuthBurst:     v.GetInt("ratelimit.auth_burst"),
		},
	}

	var err error
	if cfg.Checkout.TaxRate, err = decimal.NewFromString(v.GetString("checkout.tax_rate")); err != nil {
		return nil, fmt.Errorf("invalid checkout.tax_rate: %w", err)
	}
	if cfg.Checkout.FreeShippingThreshold, err = decimal.NewFromString(v.GetString("checkout.free_shipping_threshold")); err != nil {
		return nil, fmt.Errorf("invalid checkout.free_shipping_threshold: %w", err)
	}
	if cfg.Checkout.FlatShippingFee, err = decimal.NewFromString(v.GetString("checkout.flat_shipping_fee")); err != nil {
		return nil, fmt.Errorf("invalid checkout.flat_shipping_fee: %w", err)
	}
	cfg.Checkout.Currency = v.GetString("checkout.currency")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "memory", "gorm", "redis":
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	switch c.Auth.Mode {
	case "database", "static":
	default:
		return fmt.Errorf("unsupported auth.mode %q", c.Auth.Mode)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (AUTH_JWT_SECRET)")
	}
	return nil
}
