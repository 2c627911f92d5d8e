package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "sod", cfg.Store.Namespace)
	assert.Equal(t, time.Hour, cfg.Session.OrderPendingTTL)
	assert.Equal(t, "BCR2DN7TZD7MBT2N", cfg.Payment.MerchantID)
	assert.Equal(t, "TEST", cfg.Payment.Environment)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("CART_TTL", "90")
	t.Setenv("ORDER_PENDING_TTL", "0s")
	t.Setenv("SEED_DEFAULTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Session.CartTTL)
	assert.Equal(t, time.Duration(0), cfg.Session.OrderPendingTTL)
	assert.True(t, cfg.Store.SeedDefaults)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store: StoreConfig{Driver: DriverMongo, Namespace: "sod"},
			Admin: AdminConfig{JWTSecret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: "STORE_DRIVER"},
		{name: "missing secret", mutate: func(c *Config) { c.Admin.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "plain password", mutate: func(c *Config) { c.Admin.PasswordHash = "hunter2" }, wantErr: "bcrypt"},
		{name: "otel without endpoint", mutate: func(c *Config) { c.OTEL.Enabled = true }, wantErr: "OTLP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
