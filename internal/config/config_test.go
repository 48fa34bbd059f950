package config

import (
	"testing"
	"time"

	"finance-tracker/internal/aggregate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORAGE_BACKEND", "DB_PATH", "DATABASE_URL", "SESSION_BACKEND", "REDIS_ADDR",
		"SESSION_MAX_AGE", "SESSION_SWEEP_INTERVAL", "SECURE_COOKIE", "MONTHLY_WINDOW", "CORS_ORIGINS",
		"SEED_DEMO_USER", "ADMIN_EMAIL", "ADMIN_PASSWORD", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, aggregate.WindowCalendar, cfg.MonthlyWindow)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, cfg.CORSOrigins)
	assert.True(t, cfg.SeedDemoUser)
	assert.Equal(t, ":8080", cfg.Addr())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("SECURE_COOKIE", "true")
	t.Setenv("MONTHLY_WINDOW", "rolling30")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SEED_DEMO_USER", "false")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxAge)
	assert.True(t, cfg.SecureCookie)
	assert.Equal(t, aggregate.WindowRolling30, cfg.MonthlyWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.SeedDemoUser)
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("SESSION_MAX_AGE", "a week")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionMaxAge)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.Port = 0
	cfg.StorageBackend = "postgres"
	cfg.SessionBackend = "memcached"
	cfg.SessionMaxAge = 0
	cfg.MonthlyWindow = "weekly"
	cfg.AdminEmail = "admin@example.com"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "configuration validation failed")
	assert.Contains(t, msg, "PORT must be between 1 and 65535")
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "SESSION_BACKEND must be memory, redis or sqlite")
	assert.Contains(t, msg, "SESSION_MAX_AGE must be positive")
	assert.Contains(t, msg, "MONTHLY_WINDOW")
	assert.Contains(t, msg, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
}

func TestValidateSQLiteSessionsNeedSQLiteStorage(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.SessionBackend = "sqlite"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_BACKEND=sqlite requires STORAGE_BACKEND=sqlite")

	cfg.StorageBackend = "sqlite"
	assert.NoError(t, cfg.Validate())
}
