package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("UPI_ID", "merchant@upi")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 6, cfg.URL.ShortCodeLength)
	assert.Equal(t, 10, cfg.URL.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 100, cfg.Payment.Amount)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, "merchant@upi", cfg.Payment.UPIID)
	assert.False(t, cfg.Clicks.Async)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "another-secret")
	t.Setenv("PAYMENT_UPI_ID", "shop@upi")
	t.Setenv("URL_SHORT_CODE_LENGTH", "8")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("PG_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "another-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 8, cfg.URL.ShortCodeLength)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("UPI_ID", "merchant@upi")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{JWTSecret: "s"},
		URL:      URLConfig{ShortCodeLength: 6},
		Payment:  PaymentConfig{Amount: 100, UPIID: "a@upi"},
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Database.Driver = "mysql"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Payment.Amount = 0
	assert.Error(t, bad.Validate())
}
