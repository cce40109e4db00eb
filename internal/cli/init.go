// Package cli holds the start-up steps shared by cmd/boothmetrics and
// cmd/boothmetrics-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"boothmetrics/internal/app"
	"boothmetrics/internal/config"
	applog "boothmetrics/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the configured level and makes it
// the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logConfig := applog.DefaultConfig()
	logConfig.Level = applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(logConfig).WithComponent(component)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads the environment, then the configuration, and sets up
// logging. It exits the process when the configuration is invalid.
func LoadConfig(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitApp wires the application and loads seed data. It exits the process
// when wiring fails; a failed seed is logged only.
func InitApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts app.Options) *app.App {
	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	res, err := a.Seed(ctx)
	switch {
	case err != nil:
		logger.Error("Failed to seed ledger", applog.FieldError, err, "path", cfg.SeedCSVPath)
	case !res.Skipped:
		logger.Info("Ledger seeded", "loaded", res.Loaded, "rejected", res.Rejected)
	}
	return a
}

// ShutdownContext is cancelled on SIGINT or SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
