// Package cli holds the startup steps shared by cmd/contabils and
// cmd/contabils-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"contabils/internal/config"
	applog "contabils/internal/log"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the configuration and builds the component logger from
// it. The logger is installed as the slog default. Exits on a load error.
func LoadConfig(component string) (*config.Config, *applog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Failed to load configuration", applog.FieldError, err)
		os.Exit(1)
	}
	logger := NewLogger(cfg, component)
	applog.SetDefault(logger)
	return cfg, logger
}

// NewLogger builds a logger from the LOG_* settings. An unknown level falls
// back to info with a warning.
func NewLogger(cfg *config.Config, component string) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	lc := applog.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.LogFormat
	lc.Component = component
	logger := applog.New(lc)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}
	return logger
}

// MustValidate exits when validate reports an error.
func MustValidate(logger *applog.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
