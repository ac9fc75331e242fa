package reference

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bmeutil/internal/core"
	"bmeutil/internal/sources"
)

var monthsPerYear = decimal.NewFromInt(12)

// BuildEquipment keeps registry rows with a real identifier, a positive
// capital expense and a positive depreciation period. Later rows win on
// duplicate identifiers. dropped counts the rejected rows.
func BuildEquipment(rows []sources.EquipmentRow) (out map[string]core.Equipment, dropped int) {
	out = make(map[string]core.Equipment, len(rows))
	for _, r := range rows {
		id := core.NormalizeID(r.AETitle)
		if id == "" || core.IsNullToken(id) {
			dropped++
			continue
		}
		capEx, ok := core.ParseDecimal(r.CapEx)
		if !ok || !capEx.IsPositive() {
			dropped++
			continue
		}
		depYears, ok := core.ParseDecimal(r.DepYears)
		if !ok || !depYears.IsPositive() {
			dropped++
			continue
		}
		exactMonths := depYears.Mul(monthsPerYear)
		depMonths := exactMonths.Round(0).IntPart()
		if depMonths < 1 {
			dropped++
			continue
		}

		eq := core.Equipment{
			AETitle:    id,
			CapEx:      capEx.InexactFloat64(),
			MonthlyDep: capEx.Div(exactMonths).InexactFloat64(),
			DepMonths:  int(depMonths),
			OrderNum:   textCell(r.OrderNum),
			Name:       textCell(r.Name),
			Brand:      textCell(r.Brand),
			Model:      textCell(r.Model),
		}
		if t, ok := core.ParseDate(r.InstallDate); ok {
			eq.InstallDate = &core.Date{Time: t}
		}
		out[id] = eq
	}
	return out, dropped
}

// BuildServices returns the price and display-name references keyed by
// procedure code. Unparseable prices become zero; blank names are omitted so
// callers fall back to the code.
func BuildServices(rows []sources.ServiceRow) (prices map[string]decimal.Decimal, names map[string]string) {
	prices = make(map[string]decimal.Decimal, len(rows))
	names = make(map[string]string, len(rows))
	for _, r := range rows {
		code := core.NormalizeID(r.Code)
		if code == "" {
			continue
		}
		prices[code] = core.DecimalOrZero(r.Price)
		if name := textCell(r.Name); name != "" {
			names[code] = name
		}
	}
	return prices, names
}

// BuildCosts returns unit costs keyed by procedure code, zero when the cell
// is unparseable.
func BuildCosts(rows []sources.CostRow) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		code := core.NormalizeID(r.Code)
		if code == "" {
			continue
		}
		out[code] = core.DecimalOrZero(r.GrandCost)
	}
	return out
}

// BuildLedger indexes expense postings by purchase-order number, dropping
// rows without an order number, a parseable date or a parseable amount.
func BuildLedger(rows []sources.LedgerRow) (out map[string][]core.LedgerEntry, dropped int) {
	out = make(map[string][]core.LedgerEntry)
	for _, r := range rows {
		order := core.NormalizeID(r.OrderNum)
		if order == "" || core.IsNullToken(order) {
			dropped++
			continue
		}
		date, ok := core.ParseDate(r.PostingDate)
		if !ok {
			dropped++
			continue
		}
		amount, ok := core.ParseDecimal(r.Amount)
		if !ok {
			dropped++
			continue
		}
		out[order] = append(out[order], core.LedgerEntry{
			OrderNum:    order,
			PostingDate: date,
			Amount:      amount,
		})
	}
	return out, dropped
}

type factKey struct {
	aeTitle, code, yearMonth string
}

// BuildProcedures indexes monthly procedure counts by AE title. Rows sharing
// (AE title, code, month) are summed; rows with a malformed month or a
// missing, zero or negative quantity are dropped. Each device's facts are
// ordered by month then code.
func BuildProcedures(rows []sources.ProcedureRow) (out map[string][]core.ProcedureFact, dropped int) {
	sums := make(map[factKey]decimal.Decimal)
	for _, r := range rows {
		ae := core.NormalizeID(r.AETitle)
		if ae == "" {
			dropped++
			continue
		}
		ym := yearMonthLabel(r.YearMonth)
		if _, ok := core.ParseYearMonth(ym); !ok {
			dropped++
			continue
		}
		qty, ok := core.ParseDecimal(r.OrderQty)
		if !ok || !qty.IsPositive() {
			dropped++
			continue
		}
		k := factKey{aeTitle: ae, code: core.NormalizeID(r.Code), yearMonth: ym}
		sums[k] = sums[k].Add(qty)
	}

	out = make(map[string][]core.ProcedureFact)
	for k, qty := range sums {
		out[k.aeTitle] = append(out[k.aeTitle], core.ProcedureFact{
			AETitle:   k.aeTitle,
			Code:      k.code,
			YearMonth: k.yearMonth,
			Quantity:  qty,
		})
	}
	for _, facts := range out {
		SortFacts(facts)
	}
	return out, dropped
}

// SortFacts orders facts by month, then code.
func SortFacts(facts []core.ProcedureFact) {
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].YearMonth != facts[j].YearMonth {
			return facts[i].YearMonth < facts[j].YearMonth
		}
		return facts[i].Code < facts[j].Code
	})
}

// yearMonthLabel keeps the first seven characters, so "2024-03-01" and
// "2024-03" both become "2024-03".
func yearMonthLabel(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 7 {
		return s[:7]
	}
	return s
}

// textCell trims a descriptive cell and blanks textual nulls.
func textCell(s string) string {
	s = strings.TrimSpace(s)
	if core.IsNullToken(s) {
		return ""
	}
	return s
}

func fillEmpty(set *core.ReferenceSet) {
	if set.Equipment == nil {
		set.Equipment = map[string]core.Equipment{}
	}
	if set.Prices == nil {
		set.Prices = map[string]decimal.Decimal{}
	}
	if set.Names == nil {
		set.Names = map[string]string{}
	}
	if set.Costs == nil {
		set.Costs = map[string]decimal.Decimal{}
	}
	if set.Ledger == nil {
		set.Ledger = map[string][]core.LedgerEntry{}
	}
	if set.Procedures == nil {
		set.Procedures = map[string][]core.ProcedureFact{}
	}
}
