// Package backend opens the reference source selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"

	"bmeutil/internal/sources"
)

// CleanupFunc releases a backend's connections.
type CleanupFunc func() error

// Result carries the opened source and the functions that close it.
type Result struct {
	Source   sources.Source
	cleanups []CleanupFunc
}

// Close runs every cleanup in reverse order of registration.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}

func (r *Result) onClose(fn CleanupFunc) {
	r.cleanups = append(r.cleanups, fn)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific; prices and names come from the HIS database
	PostgresDSN    string
	HISPostgresDSN string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleEquipmentSheet     string
	GoogleServicesSheet      string
	GoogleCostsSheet         string
	GoogleLedgerSheet        string
	GoogleProceduresSheet    string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
