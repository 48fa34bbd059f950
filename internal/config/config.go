package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/aggregate"
)

type Config struct {
	Port           int
	StorageBackend string // memory, sqlite or postgres
	DBPath         string
	DatabaseURL    string

	SessionBackend       string // memory, redis or sqlite
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SessionMaxAge        time.Duration
	SessionSweepInterval time.Duration
	SecureCookie         bool

	MonthlyWindow aggregate.Window
	CORSOrigins   []string

	SeedDemoUser  bool
	AdminEmail    string
	AdminPassword string
	AdminName     string

	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	ServiceName string
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from the environment, falling back to defaults.
func Load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
		DBPath:         getEnv("DB_PATH", "finance.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		SessionBackend:       strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		SessionMaxAge:        getEnvDuration("SESSION_MAX_AGE", 7*24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),
		SecureCookie:         getEnvBool("SECURE_COOKIE", false),

		MonthlyWindow: aggregate.Window(strings.ToLower(getEnv("MONTHLY_WINDOW", string(aggregate.WindowCalendar)))),
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),

		SeedDemoUser:  getEnvBool("SEED_DEMO_USER", true),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "finance"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger.events"),

		ServiceName: getEnv("SERVICE_NAME", "finance-tracker"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Port <= 0 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	switch c.StorageBackend {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		errors = append(errors, fmt.Sprintf("STORAGE_BACKEND must be memory, sqlite or postgres, got %q", c.StorageBackend))
	}

	switch c.SessionBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errors = append(errors, "REDIS_ADDR is required when SESSION_BACKEND=redis")
		}
	case "sqlite":
		if c.StorageBackend != "sqlite" {
			errors = append(errors, "SESSION_BACKEND=sqlite requires STORAGE_BACKEND=sqlite")
		}
	default:
		errors = append(errors, fmt.Sprintf("SESSION_BACKEND must be memory, redis or sqlite, got %q", c.SessionBackend))
	}

	if c.SessionMaxAge <= 0 {
		errors = append(errors, "SESSION_MAX_AGE must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		errors = append(errors, "SESSION_SWEEP_INTERVAL must be positive")
	}

	if _, err := aggregate.ParseWindow(string(c.MonthlyWindow)); err != nil {
		errors = append(errors, "MONTHLY_WINDOW: "+err.Error())
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
