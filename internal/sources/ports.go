// Package sources declares the raw reference tables the loader reads and the
// ports every backend (database, spreadsheet, files) implements.
package sources

import "context"

// Raw rows carry cell values as text; coercion belongs to the loader.
type (
	EquipmentRow struct {
		AETitle     string
		CapEx       string
		DepYears    string
		OrderNum    string
		Name        string
		Brand       string
		Model       string
		InstallDate string
	}

	// ServiceRow is one entry of the hospital treatment-code master: price
	// and display name share a table.
	ServiceRow struct {
		Code  string
		Name  string
		Price string
	}

	CostRow struct {
		Code      string
		GrandCost string
	}

	LedgerRow struct {
		OrderNum    string
		PostingDate string
		Amount      string
	}

	// ProcedureRow is a monthly procedure count per device and code.
	ProcedureRow struct {
		AETitle   string
		Code      string
		YearMonth string
		OrderQty  string
	}
)

// Ports for outbound adapters.
type (
	EquipmentReader interface {
		ReadEquipment(ctx context.Context) ([]EquipmentRow, error)
	}

	ServiceReader interface {
		ReadServices(ctx context.Context) ([]ServiceRow, error)
	}

	CostReader interface {
		ReadCosts(ctx context.Context) ([]CostRow, error)
	}

	LedgerReader interface {
		ReadLedger(ctx context.Context) ([]LedgerRow, error)
	}

	ProcedureReader interface {
		ReadProcedures(ctx context.Context) ([]ProcedureRow, error)
	}

	// Source provides all five reference tables.
	Source interface {
		EquipmentReader
		ServiceReader
		CostReader
		LedgerReader
		ProcedureReader
	}
)

// Composite assembles a Source from independent readers, e.g. when prices
// come from a different database than the equipment registry.
type Composite struct {
	EquipmentReader
	ServiceReader
	CostReader
	LedgerReader
	ProcedureReader
}

var _ Source = Composite{}
