// Package cli provides the initialization steps shared by cmd/fintrack and
// cmd/fintrack-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/repository"
	"fintrack/internal/storage"
)

// SetupLogger builds the process logger from cfg and installs it as the slog
// default. An invalid setting falls back to text at info level.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger, err := applog.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		logger = applog.New(applog.Config{Level: slog.LevelInfo, Output: os.Stderr})
		applog.SetDefault(logger)
		logger.Warn("Invalid logging configuration, using defaults", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Env is the wired local store, remote and repositories of one process.
type Env struct {
	Config  *config.Config
	Logger  *applog.Logger
	Store   *storage.SQLiteRepository
	Remote  *backend.Result
	Repos   *repository.Set
	cleanup []func() error
}

// Open loads configuration and wires storage, the remote and the
// repositories. Callers must Close the result.
func Open(ctx context.Context) (*Env, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg)

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLiteDBPath, err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	remote, err := backend.NewFactory(logger.Logger).CreateRemote(ctx, bcfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Env{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Remote:  remote,
		Repos:   repository.New(store, remote.Remote, time.Now),
		cleanup: []func() error{remote.Cleanup, store.Close},
	}, nil
}

// Close releases the remote and the local store.
func (e *Env) Close() error {
	var first error
	for _, fn := range e.cleanup {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// cleanup runs once the signal arrives, bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}
