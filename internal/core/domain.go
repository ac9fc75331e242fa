package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format exchanged with the dashboard.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date serialized as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	// Equipment is one validated row of the biomedical-equipment registry.
	Equipment struct {
		AETitle     string  `json:"-"`
		CapEx       float64 `json:"capEx"`
		MonthlyDep  float64 `json:"monthlyDep"`
		DepMonths   int     `json:"depMonths"`
		OrderNum    string  `json:"orderNum"`
		Name        string  `json:"bmeName"`
		Brand       string  `json:"brand"`
		Model       string  `json:"model"`
		InstallDate *Date   `json:"installDate"`
	}

	// LedgerEntry is a maintenance expense posted against a purchase order.
	LedgerEntry struct {
		OrderNum    string
		PostingDate time.Time
		Amount      decimal.Decimal
	}

	// ProcedureFact is the number of procedures of one code performed on a
	// device during one month.
	ProcedureFact struct {
		AETitle   string
		Code      string
		YearMonth string // YYYY-MM
		Quantity  decimal.Decimal
	}

	// ReferenceSet holds every reference structure the aggregator joins
	// against. It is immutable once built.
	ReferenceSet struct {
		Equipment  map[string]Equipment
		Prices     map[string]decimal.Decimal
		Names      map[string]string
		Costs      map[string]decimal.Decimal
		Ledger     map[string][]LedgerEntry   // by purchase-order number
		Procedures map[string][]ProcedureFact // by AE title
		LoadedAt   time.Time
	}

	// RowRecord is one (month, procedure code) line of a device response.
	RowRecord struct {
		AETitle     string  `json:"aeTitle"`
		YearMonth   string  `json:"yearMonth"`
		ServiceCode string  `json:"serviceCode"`
		ServiceName string  `json:"serviceName"`
		OrderQty    float64 `json:"orderQty"`
		UnitPrice   float64 `json:"unitPrice"`
		UnitCost    float64 `json:"unitCost"`
		RevenueRaw  float64 `json:"revenueRaw"`
		CostTotal   float64 `json:"costTotal"`
		// Profit is costTotal - revenueRaw. Positive means cost exceeded
		// revenue; the sign is pending confirmation by the finance team.
		Profit    float64 `json:"profit"`
		RevenuePL float64 `json:"revenuePL"`
		MarginPct float64 `json:"marginPct"`
	}

	DeviceInfo struct {
		OrderNum    string  `json:"orderNum"`
		CapEx       float64 `json:"capEx"`
		MonthlyDep  float64 `json:"monthlyDep"`
		DepMonths   int     `json:"depMonths"`
		InstallDate *Date   `json:"installDate"`
	}

	// DeviceResponse is the aggregated dashboard payload for one device.
	DeviceResponse struct {
		SAPMap          map[string]float64 `json:"sapMap"`
		PACSDataDetails []RowRecord        `json:"pacsDataDetails"`
		AllUniqueDates  []string           `json:"allUniqueDates"`
		TodayStr        string             `json:"todayStr"`
		DeviceInfo      DeviceInfo         `json:"deviceInfo"`
	}

	// MonthSummary is one point of the monthly financial series drawn by the
	// dashboard charts.
	MonthSummary struct {
		Date              string  `json:"date"`
		YearMonth         string  `json:"yearMonth"`
		IsFuture          bool    `json:"isFuture"`
		RevenuePL         float64 `json:"revenuePL"`
		CumulativeRevenue float64 `json:"cumulativeRevenuePL"`
		Expense           float64 `json:"expense"`
		CumulativeExpense float64 `json:"cumulativeExpense"`
		CapEx             float64 `json:"capEx"`
		Depreciation      float64 `json:"depreciation"`
	}
)

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Info returns the summary block attached to every device response.
func (e Equipment) Info() DeviceInfo {
	return DeviceInfo{
		OrderNum:    e.OrderNum,
		CapEx:       e.CapEx,
		MonthlyDep:  e.MonthlyDep,
		DepMonths:   e.DepMonths,
		InstallDate: e.InstallDate,
	}
}

// Loaded reports whether the set carries a usable equipment registry.
func (r *ReferenceSet) Loaded() bool {
	return r != nil && r.Equipment != nil
}
