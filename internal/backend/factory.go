package backend

import (
	"context"
	"fmt"

	applog "bmeutil/internal/log"
	"bmeutil/internal/sources"
	"bmeutil/internal/sources/google"
	"bmeutil/internal/sources/memory"
	"bmeutil/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// New opens a backend with the default factory.
func New(ctx context.Context, config Config, logger *applog.Logger) (*Result, error) {
	return NewFactory(logger).CreateBackend(ctx, config)
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	res := &Result{Source: repo}
	res.onClose(repo.Close)
	return res, nil
}

// createPostgresBackend reads every table from the main database except the
// treatment-code master, which lives in the HIS database when one is
// configured.
func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*Result, error) {
	primary, err := storage.NewPostgresRepository(ctx, config.PostgresDSN, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to main database: %w", err)
	}
	res := &Result{Source: primary}
	res.onClose(primary.Close)

	if config.HISPostgresDSN == "" || config.HISPostgresDSN == config.PostgresDSN {
		f.logger.InfoContext(ctx, "Initialized Postgres backend", "his_database", "shared")
		return res, nil
	}

	his, err := storage.NewPostgresRepository(ctx, config.HISPostgresDSN, f.logger)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("failed to connect to HIS database: %w", err)
	}
	res.onClose(his.Close)
	res.Source = sources.Composite{
		EquipmentReader: primary,
		ServiceReader:   his,
		CostReader:      primary,
		LedgerReader:    primary,
		ProcedureReader: primary,
	}

	f.logger.InfoContext(ctx, "Initialized Postgres backend", "his_database", "separate")
	return res, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.NewClient(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		EquipmentSheet:  config.GoogleEquipmentSheet,
		ServicesSheet:   config.GoogleServicesSheet,
		CostsSheet:      config.GoogleCostsSheet,
		LedgerSheet:     config.GoogleLedgerSheet,
		ProceduresSheet: config.GoogleProceduresSheet,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Logger:          f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Source: cli}, nil
}

// createMemoryBackend reads the CSV exports once; a missing file is reported
// by the loader on first use, not here.
func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*Result, error) {
	store, err := memory.NewFromDir(config.DataDirectory)
	if err != nil {
		f.logger.WarnContext(ctx, "Some CSV exports could not be read",
			"data_directory", config.DataDirectory, applog.FieldError, err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", config.DataDirectory)
	return &Result{Source: store}, nil
}
