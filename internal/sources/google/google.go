// Package google reads the reference tables from a Google Sheets spreadsheet
// with one tab per table and a header row naming the columns.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "bmeutil/internal/log"
	"bmeutil/internal/sources"
)

// Default tab names mirror the database table names.
const (
	DefaultEquipmentSheet  = "UTILIZE_BME"
	DefaultServicesSheet   = "HIS_MASTER_TREATMENT_CODE"
	DefaultCostsSheet      = "UTILIZE_COST_XRAY"
	DefaultLedgerSheet     = "UTILIZE_SAP"
	DefaultProceduresSheet = "UTILIZE_PACS2"
)

type Config struct {
	SpreadsheetID   string
	EquipmentSheet  string
	ServicesSheet   string
	CostsSheet      string
	LedgerSheet     string
	ProceduresSheet string
	// CredentialsJSON takes precedence over CredentialsFile. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string

	Logger *applog.Logger
}

func (c *Config) applyDefaults() {
	set := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	set(&c.EquipmentSheet, DefaultEquipmentSheet)
	set(&c.ServicesSheet, DefaultServicesSheet)
	set(&c.CostsSheet, DefaultCostsSheet)
	set(&c.LedgerSheet, DefaultLedgerSheet)
	set(&c.ProceduresSheet, DefaultProceduresSheet)
}

type Client struct {
	svc    *gsheet.Service
	cfg    Config
	logger *applog.Logger
}

var _ sources.Source = (*Client)(nil)

// NewClient creates a read-only Sheets client using service account
// credentials.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg.SpreadsheetID = strings.TrimSpace(cfg.SpreadsheetID)
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	cfg.applyDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Default()
	}
	logger = logger.WithComponent(applog.ComponentSource)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, cfg: cfg, logger: logger}, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		logger.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(credentialsJSON))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// readSheet returns every row of the named tab. Numbers arrive unformatted
// so that thousands separators never reach the parser; dates arrive as the
// sheet displays them.
func (c *Client) readSheet(ctx context.Context, sheet string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, sheet).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	c.logger.DebugContext(ctx, "Read sheet", "sheet", sheet, applog.FieldRows, len(resp.Values))
	return resp.Values, nil
}

func (c *Client) ReadEquipment(ctx context.Context) ([]sources.EquipmentRow, error) {
	values, err := c.readSheet(ctx, c.cfg.EquipmentSheet)
	if err != nil {
		return nil, err
	}
	return parseEquipment(values)
}

func (c *Client) ReadServices(ctx context.Context) ([]sources.ServiceRow, error) {
	values, err := c.readSheet(ctx, c.cfg.ServicesSheet)
	if err != nil {
		return nil, err
	}
	return parseServices(values)
}

func (c *Client) ReadCosts(ctx context.Context) ([]sources.CostRow, error) {
	values, err := c.readSheet(ctx, c.cfg.CostsSheet)
	if err != nil {
		return nil, err
	}
	return parseCosts(values)
}

func (c *Client) ReadLedger(ctx context.Context) ([]sources.LedgerRow, error) {
	values, err := c.readSheet(ctx, c.cfg.LedgerSheet)
	if err != nil {
		return nil, err
	}
	return parseLedger(values)
}

func (c *Client) ReadProcedures(ctx context.Context) ([]sources.ProcedureRow, error) {
	values, err := c.readSheet(ctx, c.cfg.ProceduresSheet)
	if err != nil {
		return nil, err
	}
	return parseProcedures(values)
}
