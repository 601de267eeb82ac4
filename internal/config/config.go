// Package config loads process settings from the environment, optionally
// primed from .env files during local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"bracket-app/internal/model"
	"bracket-app/internal/quota"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Port                  int
	PostgresDSN           string
	PostgresMigrationsDir string
	DBPath                string
	DBMigrationsDir       string
	LogLevel              zerolog.Level
	LogFormat             string
	CORSAllowedOrigins    []string
	App                   string
	Lambda                bool
	QuotaLimits           map[model.AccountType]quota.Limits
}

// Load reads the configuration. Outside Lambda, .env.local and .env are
// loaded first; variables already set in the environment win.
func Load() (*Config, error) {
	lambda := strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
	if !lambda {
		for _, f := range []string{".env.local", ".env"} {
			_ = godotenv.Load(f)
		}
	}

	cfg := &Config{
		PostgresDSN:           strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		PostgresMigrationsDir: strings.TrimSpace(os.Getenv("POSTGRES_MIGRATIONS_DIR")),
		DBPath:                strings.TrimSpace(os.Getenv("DB_PATH")),
		DBMigrationsDir:       strings.TrimSpace(os.Getenv("DB_MIGRATIONS_DIR")),
		LogFormat:             strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		App:                   strings.ToLower(strings.TrimSpace(os.Getenv("APP"))),
		Lambda:                lambda,
		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		QuotaLimits:           quota.DefaultLimits(),
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}
	cfg.Port = port

	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	switch cfg.LogFormat {
	case "", "json", "console":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	for account, key := range map[model.AccountType]string{
		model.AccountDemo:    "QUOTA_DEMO_MAX_ROUNDS",
		model.AccountRegular: "QUOTA_REGULAR_MAX_ROUNDS",
	} {
		limit, err := intEnv(key, cfg.QuotaLimits[account][quota.MaxRounds])
		if err != nil {
			return nil, err
		}
		if limit < 0 {
			return nil, fmt.Errorf("%s must not be negative, got %d", key, limit)
		}
		cfg.QuotaLimits[account] = quota.Limits{quota.MaxRounds: limit}
	}

	return cfg, nil
}

// Backend names the store to open: Postgres when a DSN is set, SQLite when a
// path is set, memory otherwise.
func (c *Config) Backend() string {
	switch {
	case c.PostgresDSN != "":
		return BackendPostgres
	case c.DBPath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}

func (c *Config) Production() bool {
	return c.App == "prod"
}

// SeedDemo reports whether the memory store should start with demo data.
func (c *Config) SeedDemo() bool {
	return c.Backend() == BackendMemory && !c.Production()
}

func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
