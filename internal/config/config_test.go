package config_test

import (
	"testing"
	"time"

	"veggiemarket/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test_jwt_secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gorm", cfg.Storage.Driver)
	assert.Equal(t, "database", cfg.Auth.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionIdle)
	assert.Equal(t, "0.18", cfg.Checkout.TaxRate.String())
	assert.Equal(t, "1000", cfg.Checkout.FreeShippingThreshold.String())
	assert.Equal(t, "INR", cfg.Checkout.Currency)
	assert.Empty(t, cfg.RabbitMQ.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s")
	t.Setenv("APP_PORT", ":9000")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("AUTH_MODE", "static")
	t.Setenv("AUTH_LATENCY", "250ms")
	t.Setenv("CHECKOUT_FLAT_SHIPPING_FEE", "40")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.App.Port)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "static", cfg.Auth.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Auth.Latency)
	assert.Equal(t, "40", cfg.Checkout.FlatShippingFee.String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {},
		"bad driver":      {"AUTH_JWT_SECRET": "s", "DATABASE_DRIVER": "mysql"},
		"bad storage":     {"AUTH_JWT_SECRET": "s", "STORAGE_DRIVER": "disk"},
		"bad auth mode":   {"AUTH_JWT_SECRET": "s", "AUTH_MODE": "ldap"},
		"bad tax rate":    {"AUTH_JWT_SECRET": "s", "CHECKOUT_TAX_RATE": "lots"},
		"bad shipping":    {"AUTH_JWT_SECRET": "s", "CHECKOUT_FLAT_SHIPPING_FEE": "x"},
		"bad threshold":   {"AUTH_JWT_SECRET": "s", "CHECKOUT_FREE_SHIPPING_THRESHOLD": "x"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
