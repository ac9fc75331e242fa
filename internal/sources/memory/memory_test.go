package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bmeutil/internal/sources"
)

func TestNewFromDirReadsCSV(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(EquipmentFile, "\ufeffae_title,asset_name,order_no,brand,model,purchase_price,receive_date,depreciation_years\n"+
		" AE1 ,CT Scanner,4500012345,Acme,X1,120000,2022-01-15,5\n")
	mustWrite(LedgerFile, "Order,Posting_Date,Valin_repcur\n4500012345,2024-01-10,1500.50\n")
	mustWrite(ProceduresFile, "ae_title,service_code,year_month,order_qty\nAE1,X001,2024-01,10\n")
	mustWrite(CostsFile, "Code,GrandTotalCost\nX001,300\n")

	s, err := NewFromDir(dir)
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}
	ctx := context.Background()

	eq, err := s.ReadEquipment(ctx)
	if err != nil || len(eq) != 1 {
		t.Fatalf("equipment: %v %v", eq, err)
	}
	if eq[0].AETitle != "AE1 " || eq[0].CapEx != "120000" || eq[0].DepYears != "5" {
		t.Fatalf("unexpected equipment row: %+v", eq[0])
	}

	ledger, _ := s.ReadLedger(ctx)
	if len(ledger) != 1 || ledger[0].Amount != "1500.50" {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}

	costs, _ := s.ReadCosts(ctx)
	if len(costs) != 1 || costs[0].GrandCost != "300" {
		t.Fatalf("unexpected costs: %+v", costs)
	}

	// services.csv is absent: the reader fails, loading continues elsewhere.
	if _, err := s.ReadServices(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error for services, got %v", err)
	}
}

func TestFailAndReadCounters(t *testing.T) {
	s := New(Tables{Costs: []sources.CostRow{{Code: "A", GrandCost: "1"}}})
	ctx := context.Background()

	boom := errors.New("boom")
	s.Fail(CostsFile, boom)
	if _, err := s.ReadCosts(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.Fail(CostsFile, nil)
	rows, err := s.ReadCosts(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected read: %v %v", rows, err)
	}
	if got := s.Reads(CostsFile); got != 2 {
		t.Fatalf("reads=%d want 2", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.ReadEquipment(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
