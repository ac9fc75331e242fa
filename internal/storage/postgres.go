package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	applog "bmeutil/internal/log"
	"bmeutil/internal/sources"
)

// PostgresRepository reads the reference tables from an existing Postgres
// database. The schema is owned elsewhere, so no migrations run here; table
// names are looked up case-insensitively on first use.
type PostgresRepository struct {
	reader
}

var _ sources.Source = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, dsn string, logger *applog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = applog.Default()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{reader: reader{
		db:     db,
		d:      postgresDialect,
		logger: logger.WithComponent(applog.ComponentSource),
	}}, nil
}

func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
