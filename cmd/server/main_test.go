package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	cfg := &config.Config{
		ServiceName: "finance-tracker-test",
		CORSOrigins: []string{"http://localhost:5173"},
	}
	store := memoryStore{auth.NewMemoryUsers(), ledger.NewMemoryStore()}
	sessions := session.NewMemoryStore()
	m := metrics.New()
	m.RegisterSessionGauge(sessions.Count)

	h := handlers.NewHandlers(handlers.Deps{
		Verifier: auth.NewVerifier(store),
		Sessions: sessions,
		Ledger:   ledger.New(store, ledger.WithMetrics(m)),
		Metrics:  m,
	})

	// Registering /metrics on the API mux panics on a pattern conflict.
	router := setupRouter(h, m, cfg)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{
			name:       "Health is public",
			method:     "GET",
			path:       "/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Metrics are exposed",
			method:     "GET",
			path:       "/metrics",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Me requires auth",
			method:     "GET",
			path:       "/api/auth/me",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Dashboard requires auth",
			method:     "GET",
			path:       "/api/dashboard/transactions",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Unknown route",
			method:     "GET",
			path:       "/expenses",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Wrong method",
			method:     "GET",
			path:       "/api/auth/login",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code,
				"%s %s returned unexpected status", tt.method, tt.path)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}

	t.Run("Metrics record routed requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `route="GET /health"`)
		assert.Contains(t, w.Body.String(), "finance_tracker_sessions_active")
	})
}

func TestSeedUsers(t *testing.T) {
	ctx := context.Background()
	users := auth.NewMemoryUsers()
	cfg := &config.Config{
		SeedDemoUser:  true,
		AdminEmail:    "Admin@Example.com",
		AdminPassword: "s3cret",
		AdminName:     "Admin",
	}

	require.NoError(t, seedUsers(ctx, cfg, users, nopLogger()))
	// Seeding twice leaves existing accounts alone.
	require.NoError(t, seedUsers(ctx, cfg, users, nopLogger()))

	count, err := users.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	v := auth.NewVerifier(users)
	_, err = v.Verify(ctx, demoEmail, demoPassword)
	assert.NoError(t, err)
	user, err := v.Verify(ctx, "admin@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Admin", user.Name)
}

func TestOpenStoreMemory(t *testing.T) {
	store, closeStore, err := openStore(context.Background(), &config.Config{StorageBackend: "memory"})
	require.NoError(t, err)
	defer closeStore()

	_, isMemory := store.(memoryStore)
	assert.True(t, isMemory)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.Config{StorageBackend: "sqlite", DBPath: t.TempDir() + "/finance.db"}
	store, closeStore, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	count, err := store.UserCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenSessionsSQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StorageBackend: "sqlite",
		SessionBackend: "sqlite",
		DBPath:         t.TempDir() + "/finance.db",
		SessionMaxAge:  time.Hour,
		SeedDemoUser:   true,
	}

	store, closeStore, err := openStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, seedUsers(ctx, cfg, store, nopLogger()))
	user, err := auth.NewVerifier(store).Verify(ctx, demoEmail, demoPassword)
	require.NoError(t, err)

	sessions, closeSessions, err := openSessions(ctx, cfg, store)
	require.NoError(t, err)
	token, err := sessions.Create(ctx, *user)
	require.NoError(t, err)
	closeSessions()
	closeStore()

	store, closeStore, err = openStore(ctx, cfg)
	require.NoError(t, err)
	defer closeStore()
	sessions, closeSessions, err = openSessions(ctx, cfg, store)
	require.NoError(t, err)
	defer closeSessions()

	resolved, ok, err := sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestOpenSessionsSQLiteNeedsSQLiteStorage(t *testing.T) {
	cfg := &config.Config{StorageBackend: "memory", SessionBackend: "sqlite"}
	store, closeStore, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	_, _, err = openSessions(context.Background(), cfg, store)
	assert.Error(t, err)
}
