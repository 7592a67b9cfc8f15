package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/cache"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateRemote implements Factory.CreateRemote.
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsRemote(ctx, config)
	case MemoryBackend:
		return f.createMemoryRemote()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsRemote(ctx context.Context, config Config) (*Result, error) {
	client, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.SpreadsheetID,
		CredentialsJSON: config.CredentialsJSON,
		CredentialsFile: config.CredentialsFile,
		CacheSize:       config.CacheSize,
		CacheTTL:        config.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	caches := cache.NewManager()
	for _, c := range client.Caches() {
		caches.Register(c)
	}
	if config.CleanupInterval > 0 {
		caches.StartCleanup(config.CleanupInterval)
	}

	f.logger.InfoContext(ctx, "Using Google Sheets remote", "spreadsheet_id", config.SpreadsheetID)

	return &Result{
		Remote: client,
		Caches: caches,
		Cleanup: func() error {
			caches.Stop()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createMemoryRemote() (*Result, error) {
	f.logger.Info("Using in-memory remote, documents are lost on exit")
	return &Result{
		Remote:  memory.New(),
		Caches:  cache.NewManager(),
		Cleanup: func() error { return nil },
	}, nil
}
