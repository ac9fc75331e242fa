package backend

import (
	"fmt"

	"bmeutil/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) Config {
	return Config{
		Type: BackendType(appConfig.DataBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		PostgresDSN:    appConfig.PostgresDSN,
		HISPostgresDSN: appConfig.HISPostgresDSN,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleEquipmentSheet:     appConfig.GoogleEquipmentSheet,
		GoogleServicesSheet:      appConfig.GoogleServicesSheet,
		GoogleCostsSheet:         appConfig.GoogleCostsSheet,
		GoogleLedgerSheet:        appConfig.GoogleLedgerSheet,
		GoogleProceduresSheet:    appConfig.GoogleProceduresSheet,

		DataDirectory: appConfig.DataDirectory,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for memory backend")
		}
	}
	return nil
}

// BackendTypes returns all valid backend types
func BackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, SheetsBackend, MemoryBackend}
}
