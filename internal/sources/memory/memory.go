// Package memory serves reference tables held in memory, optionally seeded
// from a directory of CSV exports.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bmeutil/internal/sources"
)

// File names read by NewFromDir. Each file starts with a header row; columns
// are matched by header name, case-insensitively.
const (
	EquipmentFile  = "equipment.csv"
	ServicesFile   = "services.csv"
	CostsFile      = "costs.csv"
	LedgerFile     = "ledger.csv"
	ProceduresFile = "procedures.csv"
)

type Tables struct {
	Equipment  []sources.EquipmentRow
	Services   []sources.ServiceRow
	Costs      []sources.CostRow
	Ledger     []sources.LedgerRow
	Procedures []sources.ProcedureRow
}

type Store struct {
	mu     sync.Mutex
	tables Tables
	fail   map[string]error
	reads  map[string]int
}

var _ sources.Source = (*Store)(nil)

func New(t Tables) *Store {
	return &Store{
		tables: t,
		fail:   map[string]error{},
		reads:  map[string]int{},
	}
}

// NewFromDir loads the five CSV files under dir. A missing file makes the
// matching reader fail, which the loader treats as fatal or degraded
// depending on the table.
func NewFromDir(dir string) (*Store, error) {
	s := New(Tables{})
	var errs []error

	readFile := func(name string, fn func(records []map[string]string)) {
		records, err := readCSV(filepath.Join(dir, name))
		if err != nil {
			s.fail[name] = err
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			return
		}
		fn(records)
	}

	readFile(EquipmentFile, func(recs []map[string]string) {
		for _, r := range recs {
			s.tables.Equipment = append(s.tables.Equipment, sources.EquipmentRow{
				AETitle:     r["ae_title"],
				CapEx:       r["purchase_price"],
				DepYears:    r["depreciation_years"],
				OrderNum:    r["order_no"],
				Name:        r["asset_name"],
				Brand:       r["brand"],
				Model:       r["model"],
				InstallDate: r["receive_date"],
			})
		}
	})
	readFile(ServicesFile, func(recs []map[string]string) {
		for _, r := range recs {
			s.tables.Services = append(s.tables.Services, sources.ServiceRow{
				Code:  r["code"],
				Name:  r["englishname"],
				Price: r["defaultprice"],
			})
		}
	})
	readFile(CostsFile, func(recs []map[string]string) {
		for _, r := range recs {
			s.tables.Costs = append(s.tables.Costs, sources.CostRow{
				Code:      r["code"],
				GrandCost: r["grandtotalcost"],
			})
		}
	})
	readFile(LedgerFile, func(recs []map[string]string) {
		for _, r := range recs {
			s.tables.Ledger = append(s.tables.Ledger, sources.LedgerRow{
				OrderNum:    r["order"],
				PostingDate: r["posting_date"],
				Amount:      r["valin_repcur"],
			})
		}
	})
	readFile(ProceduresFile, func(recs []map[string]string) {
		for _, r := range recs {
			s.tables.Procedures = append(s.tables.Procedures, sources.ProcedureRow{
				AETitle:   r["ae_title"],
				Code:      r["service_code"],
				YearMonth: r["year_month"],
				OrderQty:  r["order_qty"],
			})
		}
	})

	return s, errors.Join(errs...)
}

// Fail makes reads of the named file fail with err; nil clears it.
func (s *Store) Fail(file string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, file)
		return
	}
	s.fail[file] = err
}

// Reads returns how many times the named file has been read.
func (s *Store) Reads(file string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[file]
}

func (s *Store) ReadEquipment(ctx context.Context) ([]sources.EquipmentRow, error) {
	if err := s.begin(ctx, EquipmentFile); err != nil {
		return nil, err
	}
	return append([]sources.EquipmentRow(nil), s.tables.Equipment...), nil
}

func (s *Store) ReadServices(ctx context.Context) ([]sources.ServiceRow, error) {
	if err := s.begin(ctx, ServicesFile); err != nil {
		return nil, err
	}
	return append([]sources.ServiceRow(nil), s.tables.Services...), nil
}

func (s *Store) ReadCosts(ctx context.Context) ([]sources.CostRow, error) {
	if err := s.begin(ctx, CostsFile); err != nil {
		return nil, err
	}
	return append([]sources.CostRow(nil), s.tables.Costs...), nil
}

func (s *Store) ReadLedger(ctx context.Context) ([]sources.LedgerRow, error) {
	if err := s.begin(ctx, LedgerFile); err != nil {
		return nil, err
	}
	return append([]sources.LedgerRow(nil), s.tables.Ledger...), nil
}

func (s *Store) ReadProcedures(ctx context.Context) ([]sources.ProcedureRow, error) {
	if err := s.begin(ctx, ProceduresFile); err != nil {
		return nil, err
	}
	return append([]sources.ProcedureRow(nil), s.tables.Procedures...), nil
}

func (s *Store) begin(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[file]++
	if err := s.fail[file]; err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return nil
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var out []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}
