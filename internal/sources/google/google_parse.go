package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bmeutil/internal/core"
	"bmeutil/internal/sources"
)

// table is a values matrix with its header row resolved to column indexes.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(values [][]interface{}) table {
	if len(values) == 0 {
		return table{}
	}
	t := table{headers: toStrings(values[0])}
	for _, v := range values[1:] {
		t.rows = append(t.rows, toStrings(v))
	}
	return t
}

// columns resolves the named headers, reporting every missing one.
func (t table) columns(sheet string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		idx[i] = indexOf(t.headers, n)
		if idx[i] == -1 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected %s header: missing %s; got headers=%v", sheet, strings.Join(missing, ","), t.headers)
	}
	return idx, nil
}

func parseEquipment(values [][]interface{}) ([]sources.EquipmentRow, error) {
	t := newTable(values)
	if t.headers == nil {
		return nil, nil
	}
	c, err := t.columns("equipment", "ae_title", "purchase_price", "depreciation_years", "order_no",
		"asset_name", "brand", "model", "receive_date")
	if err != nil {
		return nil, err
	}
	out := make([]sources.EquipmentRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, sources.EquipmentRow{
			AETitle:     safeGet(r, c[0]),
			CapEx:       safeGet(r, c[1]),
			DepYears:    safeGet(r, c[2]),
			OrderNum:    safeGet(r, c[3]),
			Name:        safeGet(r, c[4]),
			Brand:       safeGet(r, c[5]),
			Model:       safeGet(r, c[6]),
			InstallDate: safeGet(r, c[7]),
		})
	}
	return out, nil
}

func parseServices(values [][]interface{}) ([]sources.ServiceRow, error) {
	t := newTable(values)
	if t.headers == nil {
		return nil, nil
	}
	c, err := t.columns("services", "Code", "EnglishName", "DefaultPrice")
	if err != nil {
		return nil, err
	}
	out := make([]sources.ServiceRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, sources.ServiceRow{Code: safeGet(r, c[0]), Name: safeGet(r, c[1]), Price: safeGet(r, c[2])})
	}
	return out, nil
}

func parseCosts(values [][]interface{}) ([]sources.CostRow, error) {
	t := newTable(values)
	if t.headers == nil {
		return nil, nil
	}
	c, err := t.columns("costs", "Code", "GrandTotalCost")
	if err != nil {
		return nil, err
	}
	out := make([]sources.CostRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, sources.CostRow{Code: safeGet(r, c[0]), GrandCost: safeGet(r, c[1])})
	}
	return out, nil
}

func parseLedger(values [][]interface{}) ([]sources.LedgerRow, error) {
	t := newTable(values)
	if t.headers == nil {
		return nil, nil
	}
	c, err := t.columns("ledger", "Order", "Posting_Date", "Valin_repcur")
	if err != nil {
		return nil, err
	}
	out := make([]sources.LedgerRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, sources.LedgerRow{OrderNum: safeGet(r, c[0]), PostingDate: safeGet(r, c[1]), Amount: safeGet(r, c[2])})
	}
	return out, nil
}

// parseProcedures accepts either monthly counts (year_month, order_qty) or
// one row per exam (exam_date), which is counted per device, code and month.
func parseProcedures(values [][]interface{}) ([]sources.ProcedureRow, error) {
	t := newTable(values)
	if t.headers == nil {
		return nil, nil
	}
	if indexOf(t.headers, "year_month") != -1 {
		c, err := t.columns("procedures", "ae_title", "service_code", "year_month", "order_qty")
		if err != nil {
			return nil, err
		}
		out := make([]sources.ProcedureRow, 0, len(t.rows))
		for _, r := range t.rows {
			out = append(out, sources.ProcedureRow{
				AETitle: safeGet(r, c[0]), Code: safeGet(r, c[1]),
				YearMonth: safeGet(r, c[2]), OrderQty: safeGet(r, c[3]),
			})
		}
		return out, nil
	}

	c, err := t.columns("procedures", "ae_title", "service_code", "exam_date")
	if err != nil {
		return nil, err
	}
	type key struct{ ae, code, ym string }
	counts := map[key]int{}
	for _, r := range t.rows {
		// exam dates arrive in the sheet's display format
		exam, ok := core.ParseDate(safeGet(r, c[2]))
		if !ok {
			continue
		}
		counts[key{safeGet(r, c[0]), safeGet(r, c[1]), core.YearMonth(exam)}]++
	}
	out := make([]sources.ProcedureRow, 0, len(counts))
	for k, n := range counts {
		out = append(out, sources.ProcedureRow{AETitle: k.ae, Code: k.code, YearMonth: k.ym, OrderQty: strconv.Itoa(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AETitle != b.AETitle {
			return a.AETitle < b.AETitle
		}
		if a.YearMonth != b.YearMonth {
			return a.YearMonth < b.YearMonth
		}
		return a.Code < b.Code
	})
	return out, nil
}

// toStrings renders cells as text. Unformatted numbers arrive as float64 and
// are printed without exponent so order numbers stay intact.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
