package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://dashboard:pw@localhost:5432/dashboard?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 2*time.Second, cfg.Auth.StoreTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.StatsTTL)
	assert.Empty(t, cfg.Auth.AdminEmails)
	assert.False(t, cfg.GoogleEnabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "Memory")
	t.Setenv("ADMIN_EMAILS", " boss@example.com, ,ops@example.com ")
	t.Setenv("AUTH_STORE_TIMEOUT", "750ms")
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("ENABLE_ANALYTICS", "false")
	t.Setenv("AUTH_LOGIN_RATE", "0.5")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/callback")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, []string{"boss@example.com", "ops@example.com"}, cfg.Auth.AdminEmails)
	assert.Equal(t, 750*time.Millisecond, cfg.Auth.StoreTimeout)
	assert.Equal(t, 45*time.Second, cfg.Buffer.SyncInterval)
	assert.False(t, cfg.Analytics.Enabled)
	assert.InDelta(t, 0.5, cfg.Auth.LoginRate, 1e-9)
	assert.True(t, cfg.GoogleEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production without jwt secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
}
