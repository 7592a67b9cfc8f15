package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/sheets/memory"
)

func TestCreateMemoryRemote(t *testing.T) {
	res, err := NewFactory(nil).CreateRemote(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	_, ok := res.Remote.(*memory.Store)
	assert.True(t, ok, "memory backend should return a memory store")
	assert.Zero(t, res.Caches.CleanAll())
}

func TestCreateRemoteRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown type", Config{Type: "sqlite"}},
		{"sheets without spreadsheet", Config{Type: SheetsBackend, CredentialsJSON: "{}"}},
		{"sheets without credentials", Config{Type: SheetsBackend, SpreadsheetID: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(nil).CreateRemote(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "ftp"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:              config.BackendSheets,
		GoogleSpreadsheetID:      "sheet-1",
		GoogleServiceAccountJSON: `{"type":"service_account"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "sheet-1", cfg.SpreadsheetID)
	assert.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.CacheSize)
}

func TestTypes(t *testing.T) {
	for _, typ := range Types() {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("").IsValid())
}
