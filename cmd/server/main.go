package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/events"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/session"
	"finance-tracker/internal/storage"
	"finance-tracker/internal/storage/postgres"
	"finance-tracker/internal/telemetry"
	"finance-tracker/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "password"
	demoName     = "Demo User"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	// Amounts travel as JSON numbers, the way clients send them.
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

// userLedgerStore is what a persistent backend provides for accounts and transactions.
type userLedgerStore interface {
	auth.UserStore
	ledger.Store
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	shutdownTelemetry := telemetry.Setup(ctx, cfg.ServiceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("storage ready", "backend", cfg.StorageBackend)

	sessions, closeSessions, err := openSessions(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeSessions()
	logger.Info("session store ready", "backend", cfg.SessionBackend, "max_age", cfg.SessionMaxAge)

	if err := seedUsers(ctx, cfg, store, logger); err != nil {
		return err
	}

	publisher, closePublisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	m := metrics.New()
	m.RegisterSessionGauge(sessions.Count)

	l := ledger.New(store,
		ledger.WithPublisher(publisher),
		ledger.WithMetrics(m),
		ledger.WithLogger(logger),
	)

	h := handlers.NewHandlers(handlers.Deps{
		Verifier:      auth.NewVerifier(store),
		Sessions:      sessions,
		Ledger:        l,
		Metrics:       m,
		Logger:        logger,
		Window:        cfg.MonthlyWindow,
		SessionMaxAge: cfg.SessionMaxAge,
		SecureCookie:  cfg.SecureCookie,
	})

	sweeper := session.NewSweeper(sessions, cfg.SessionMaxAge, cfg.SessionSweepInterval, logger)
	sweeper.OnSweep = m.SessionsSwept

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        setupRouter(h, m, cfg),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// setupRouter mounts the API and /metrics behind the request middleware.
func setupRouter(h *handlers.Handlers, m *metrics.Metrics, cfg *config.Config) http.Handler {
	mux := h.Routes()
	mux.Handle("GET /metrics", m.Handler())

	var handler http.Handler = mux
	handler = handlers.RequestLogger(slog.Default(), m)(handler)
	handler = handlers.CORS(cfg.CORSOrigins)(handler)
	return otelhttp.NewHandler(handler, cfg.ServiceName)
}

func openStore(ctx context.Context, cfg *config.Config) (userLedgerStore, func(), error) {
	switch cfg.StorageBackend {
	case "sqlite":
		db, err := storage.NewDB(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		return db, func() { _ = db.Close() }, nil
	case "postgres":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pg, pg.Close, nil
	default:
		return memoryStore{auth.NewMemoryUsers(), ledger.NewMemoryStore()}, func() {}, nil
	}
}

type memoryStore struct {
	*auth.MemoryUsers
	*ledger.MemoryStore
}

func openSessions(ctx context.Context, cfg *config.Config, store userLedgerStore) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case "redis":
	case "sqlite":
		db, ok := store.(*storage.DB)
		if !ok {
			return nil, nil, fmt.Errorf("sqlite sessions need the sqlite storage backend, got %s", cfg.StorageBackend)
		}
		return session.NewSQLStore(db.Conn(), session.WithMaxAge(cfg.SessionMaxAge)), func() {}, nil
	default:
		return session.NewMemoryStore(session.WithMaxAge(cfg.SessionMaxAge)), func() {}, nil
	}

	rs := session.NewRedisStore(&session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, session.WithMaxAge(cfg.SessionMaxAge))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		_ = rs.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return rs, func() { _ = rs.Close() }, nil
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return events.Noop{}, func() {}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("publishing ledger events", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	return p, func() { _ = p.Close() }, nil
}

func seedUsers(ctx context.Context, cfg *config.Config, users auth.UserStore, logger *slog.Logger) error {
	if cfg.SeedDemoUser {
		if _, created, err := auth.EnsureUser(ctx, users, demoEmail, demoName, demoPassword); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		} else if created {
			logger.Info("seeded demo user", "email", demoEmail)
		}
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, created, err := auth.EnsureUser(ctx, users, cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin user: %w", err)
		} else if created {
			logger.Info("created admin user", "email", cfg.AdminEmail)
		}
	}
	return nil
}
