// Package storage reads the reference tables from SQL databases: a local
// SQLite file managed by migrations, or the hospital Postgres databases.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	applog "bmeutil/internal/log"
	"bmeutil/internal/sources"
)

// Reference table names.
const (
	TableEquipment  = "UTILIZE_BME"
	TableServices   = "HIS_MASTER_TREATMENT_CODE"
	TableCosts      = "UTILIZE_COST_XRAY"
	TableLedger     = "UTILIZE_SAP"
	TableProcedures = "UTILIZE_PACS2"
)

// dialect holds the engine-specific SQL fragments.
type dialect struct {
	name string
	// text renders expr as a text value.
	text func(expr string) string
	// yearMonth renders the YYYY-MM label of a date column.
	yearMonth func(col string) string
	// resolve returns the quoted, possibly schema-qualified name of table.
	resolve func(ctx context.Context, db *sql.DB, table string) (string, error)
}

var (
	sqliteDialect = dialect{
		name:      "sqlite",
		text:      func(expr string) string { return "CAST(" + expr + " AS TEXT)" },
		yearMonth: func(col string) string { return "strftime('%Y-%m', " + col + ")" },
		// SQLite matches quoted table names case-insensitively
		resolve: func(_ context.Context, _ *sql.DB, table string) (string, error) {
			return pgx.Identifier{table}.Sanitize(), nil
		},
	}
	postgresDialect = dialect{
		name:      "postgres",
		text:      func(expr string) string { return "(" + expr + ")::text" },
		yearMonth: func(col string) string { return "to_char(" + col + ", 'YYYY-MM')" },
		resolve:   resolvePostgresTable,
	}
)

// postgresTableLookup finds a table by case-insensitive name, preferring the
// public schema. Hospital tables exist both as quoted upper-case and as
// folded lower-case names.
const postgresTableLookup = `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_catalog = current_database()
  AND lower(table_name) = lower($1)
ORDER BY table_schema <> 'public', table_schema
LIMIT 1`

func resolvePostgresTable(ctx context.Context, db *sql.DB, table string) (string, error) {
	var schema, name string
	err := db.QueryRowContext(ctx, postgresTableLookup, table).Scan(&schema, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("table %s not found in database", table)
	}
	if err != nil {
		return "", fmt.Errorf("resolve table %s: %w", table, err)
	}
	return pgx.Identifier{schema, name}.Sanitize(), nil
}

// reader implements sources.Source over one database.
type reader struct {
	db     *sql.DB
	d      dialect
	logger *applog.Logger

	mu     sync.Mutex
	tables map[string]string
}

// table returns the SQL name of a reference table, resolving it once.
func (r *reader) table(ctx context.Context, logical string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.tables[logical]; ok {
		return name, nil
	}
	name, err := r.d.resolve(ctx, r.db, logical)
	if err != nil {
		return "", err
	}
	if r.tables == nil {
		r.tables = make(map[string]string)
	}
	r.tables[logical] = name
	r.logger.DebugContext(ctx, "Resolved reference table", "table", logical, "sql_name", name, applog.FieldBackend, r.d.name)
	return name, nil
}

func (r *reader) equipmentQuery(table string) string {
	t := r.d.text
	return fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s, %s, %s FROM %s`,
		t(`"ae_title"`), t(`"purchase_price"`), t(`"depreciation_years"`), t(`"order_no"`),
		t(`"asset_name"`), t(`"brand"`), t(`"model"`), t(`"receive_date"`),
		table)
}

func (r *reader) servicesQuery(table string) string {
	t := r.d.text
	return fmt.Sprintf(`SELECT %s, %s, %s FROM %s`,
		t(`"Code"`), t(`"EnglishName"`), t(`"DefaultPrice"`), table)
}

func (r *reader) costsQuery(table string) string {
	t := r.d.text
	return fmt.Sprintf(`SELECT %s, %s FROM %s`, t(`"Code"`), t(`"GrandTotalCost"`), table)
}

func (r *reader) ledgerQuery(table string) string {
	t := r.d.text
	return fmt.Sprintf(`SELECT %s, %s, %s FROM %s`,
		t(`"Order"`), t(`"Posting_Date"`), t(`"Valin_repcur"`), table)
}

// procedureQuery counts exams per device, code and month.
func (r *reader) procedureQuery(table string) string {
	ym := r.d.yearMonth(`"exam_date"`)
	return fmt.Sprintf(`SELECT %s, %s, %s AS year_month, %s
FROM %s
WHERE "exam_date" IS NOT NULL
GROUP BY "ae_title", "service_code", %s`,
		r.d.text(`"ae_title"`), r.d.text(`"service_code"`), ym, r.d.text("COUNT(*)"),
		table, ym)
}

func (r *reader) ReadEquipment(ctx context.Context) ([]sources.EquipmentRow, error) {
	var out []sources.EquipmentRow
	err := r.query(ctx, TableEquipment, r.equipmentQuery, 8, func(c []string) {
		out = append(out, sources.EquipmentRow{
			AETitle: c[0], CapEx: c[1], DepYears: c[2], OrderNum: c[3],
			Name: c[4], Brand: c[5], Model: c[6], InstallDate: c[7],
		})
	})
	return out, err
}

func (r *reader) ReadServices(ctx context.Context) ([]sources.ServiceRow, error) {
	var out []sources.ServiceRow
	err := r.query(ctx, TableServices, r.servicesQuery, 3, func(c []string) {
		out = append(out, sources.ServiceRow{Code: c[0], Name: c[1], Price: c[2]})
	})
	return out, err
}

func (r *reader) ReadCosts(ctx context.Context) ([]sources.CostRow, error) {
	var out []sources.CostRow
	err := r.query(ctx, TableCosts, r.costsQuery, 2, func(c []string) {
		out = append(out, sources.CostRow{Code: c[0], GrandCost: c[1]})
	})
	return out, err
}

func (r *reader) ReadLedger(ctx context.Context) ([]sources.LedgerRow, error) {
	var out []sources.LedgerRow
	err := r.query(ctx, TableLedger, r.ledgerQuery, 3, func(c []string) {
		out = append(out, sources.LedgerRow{OrderNum: c[0], PostingDate: c[1], Amount: c[2]})
	})
	return out, err
}

func (r *reader) ReadProcedures(ctx context.Context) ([]sources.ProcedureRow, error) {
	var out []sources.ProcedureRow
	err := r.query(ctx, TableProcedures, r.procedureQuery, 4, func(c []string) {
		out = append(out, sources.ProcedureRow{AETitle: c[0], Code: c[1], YearMonth: c[2], OrderQty: c[3]})
	})
	return out, err
}

// query resolves table, builds its query and scans the rows.
func (r *reader) query(ctx context.Context, table string, build func(string) string, cols int, fn func([]string)) error {
	name, err := r.table(ctx, table)
	if err != nil {
		return err
	}
	return r.scan(ctx, table, build(name), cols, fn)
}

// scan runs query and hands every row to fn as text cells; NULL becomes "".
func (r *reader) scan(ctx context.Context, table, query string, cols int, fn func([]string)) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cells := make([]sql.NullString, cols)
	dest := make([]any, cols)
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		out := make([]string, cols)
		for i, c := range cells {
			out[i] = c.String
		}
		fn(out)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}
