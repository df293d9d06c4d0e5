// Package cli implements the saldo-cli command tree. It shares the
// configuration, backend selection and ledger service with the server.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/joho/godotenv"

	"saldo/internal/backend"
	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger returns a text logger on w. Verbose lowers the level to
// debug; otherwise only warnings and errors are printed so command output
// stays readable.
func SetupLogger(w io.Writer, verbose bool) *applog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentCLI,
		Format:    "text",
		Output:    w,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment, applies
// the backend override when set and validates the result.
func LoadAndValidateConfig(backendOverride string) (*config.Config, error) {
	cfg := config.Load()
	if backendOverride != "" {
		cfg.DataBackend = backendOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLedger creates the configured row source and a ledger service over
// it. The returned cleanup releases the source.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*services.LedgerService, func(), error) {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}
	svc := services.NewLedgerService(result.Source, cfg.LedgerConfig(), cfg.LedgerTTL, services.WithLogger(logger))
	return svc, cleanup, nil
}
