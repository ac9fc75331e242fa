package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	applog "bmeutil/internal/log"
	"bmeutil/internal/sources"

	_ "modernc.org/sqlite"
)

// SQLiteRepository serves the reference tables from a local SQLite file.
type SQLiteRepository struct {
	reader
}

var _ sources.Source = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Default()
	}
	logger = logger.WithComponent(applog.ComponentSource)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite reference database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{reader: reader{db: db, d: sqliteDialect, logger: logger}}, nil
}

// DB exposes the connection for seeding and maintenance.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
