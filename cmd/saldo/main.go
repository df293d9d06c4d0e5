package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/config"
	apphttp "saldo/internal/http"
	applog "saldo/internal/log"
	"saldo/internal/services"
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

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = applog.NewContext(ctx, logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	result, err := factory.CreateBackend(ctx, backendConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	opts := []services.LedgerServiceOption{
		services.WithLogger(logger),
		services.WithRetryBackoff(cfg.RetryBackoff),
	}

	// AMQP is optional: without it the ledger refreshes on TTL expiry and
	// POST /api/refresh only.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer amqpClient.Close()
		opts = append(opts, services.WithNotifier(amqpClient))
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ledgerService := services.NewLedgerService(result.Source, cfg.LedgerConfig(), cfg.LedgerTTL, opts...)

	if amqpClient != nil {
		listener := services.NewRefreshListener(amqpClient, ledgerService)
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := listener.Stop(stopCtx); err != nil {
				logger.Warn("Refresh listener stop failed", applog.FieldError, err)
			}
		}()
	}

	// Warm the cache; a failure here is reported by /readyz and retried on
	// the next request.
	if snap, err := ledgerService.Ledger(ctx); err != nil {
		logger.Warn("Initial ledger load failed",
			applog.FieldError, err,
			applog.FieldErrorType, services.ErrorKind(err),
			applog.FieldSource, ledgerService.Source())
	} else {
		logger.Info("Ledger loaded",
			applog.FieldSource, snap.Source,
			"transactions", len(snap.Ledger.Transactions),
			"periods", len(snap.Periods))
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledgerService, apphttp.Options{
		ViewCacheSize: cfg.ViewCacheSize,
		Logger:        logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting saldo server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"ledger_ttl", cfg.LedgerTTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
