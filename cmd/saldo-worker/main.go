package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/storage"
	"saldo/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Component: applog.ComponentApp,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	logger.Info("Starting saldo-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	// DATA_BACKEND names the upstream here; the mirror always lives in
	// SQLITE_DB_PATH.
	if cfg.DataBackend == string(backend.SQLiteBackend) {
		return fmt.Errorf("saldo-worker mirrors into SQLite; DATA_BACKEND must be sheets, csv or memory, got %q", cfg.DataBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = applog.NewContext(ctx, logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	source, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		return err
	}
	defer source.Close()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("initialize SQLite repository: %w", err)
	}
	defer repo.Close()

	// Without AMQP, servers on the sqlite backend pick up new imports when
	// their ledger TTL expires.
	var publisher worker.RefreshPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	w := worker.NewMirrorWorker(source.Source, repo, cfg.LedgerConfig(), publisher, logger)

	logger.Info("Mirroring ledger",
		applog.FieldOperation, applog.OpStartup,
		"backend", cfg.DataBackend,
		"db_path", cfg.SQLiteDBPath,
		"interval", cfg.SyncInterval.String())

	if err := w.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown signal received")
	return nil
}
