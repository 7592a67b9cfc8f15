package backend

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            t,
		SpreadsheetID:   appConfig.GoogleSpreadsheetID,
		CredentialsFile: appConfig.GoogleServiceAccountFile,
		CredentialsJSON: appConfig.GoogleServiceAccountJSON,
		CacheSize:       10000,
		CacheTTL:        10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == SheetsBackend {
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet id is required for sheets backend")
		}
		if c.CredentialsFile == "" && c.CredentialsJSON == "" {
			return errors.New("either CredentialsFile or CredentialsJSON must be provided for sheets backend")
		}
	}
	return nil
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{SheetsBackend, MemoryBackend}
}
