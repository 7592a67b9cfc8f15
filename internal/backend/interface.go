package backend

import (
	"context"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/sheets"
)

// CleanupFunc releases resources held by a remote.
type CleanupFunc func() error

// Result contains the remote and its cleanup function.
type Result struct {
	Remote sheets.Remote
	// Caches owns the remote's row caches. Empty for the memory backend.
	Caches  *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates sync remotes from configuration.
type Factory interface {
	CreateRemote(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for remote creation.
type Config struct {
	Type Type

	// Google Sheets specific
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
	CacheSize       int
	CacheTTL        time.Duration
	CleanupInterval time.Duration
}

// Type names a remote implementation.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
