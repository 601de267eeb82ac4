package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bracket-app/internal/config"
	"bracket-app/internal/quota"
	"bracket-app/internal/ranking"
	"bracket-app/internal/rounds"
	"bracket-app/internal/store"
	"bracket-app/internal/web"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bracket-app stopped")
	}
}

// run owns every resource it opens, so deferred cleanup happens before main
// exits on an error.
func run(cfg *config.Config, logger zerolog.Logger) error {
	appStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend(), err)
	}
	defer func() {
		if err := appStore.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()
	logger.Info().Str("backend", cfg.Backend()).Msg("store ready")

	if cfg.SeedDemo() {
		res, err := store.SeedDemo(context.Background(), appStore)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info().
			Str("tournament_id", res.TournamentID).
			Strs("stage_item_ids", res.StageItemIDs).
			Str("user_id", store.DemoUserID).
			Msg("demo data seeded")
	}

	calc := ranking.NewCalculator(appStore, ranking.WithLogger(logger.With().Str("component", "ranking").Logger()))
	manager := rounds.NewManager(appStore, quota.NewChecker(cfg.QuotaLimits), calc,
		rounds.WithLogger(logger.With().Str("component", "rounds").Logger()))
	server := web.NewServer(appStore, manager, calc,
		web.WithLogger(logger),
		web.WithCORSOrigins(cfg.CORSAllowedOrigins))
	handler := server.Routes()

	if cfg.Lambda {
		logger.Info().Msg("starting in lambda mode")
		adapter := httpadapter.New(handler)
		lambda.Start(adapter.ProxyWithContext)
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server exited")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(cfg.LogLevel).With().Timestamp().Str("app", "bracket-app").Logger()
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		return store.NewPostgresStore(cfg.PostgresDSN, store.PostgresOptions{
			MigrationsDir: cfg.PostgresMigrationsDir,
		})
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.DBPath, store.SQLiteOptions{
			MigrationsDir: cfg.DBMigrationsDir,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}
