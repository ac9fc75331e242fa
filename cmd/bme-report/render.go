package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bmeutil/internal/core"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeEquipmentTable(w io.Writer, equipment map[string]core.Equipment) error {
	ids := make([]string, 0, len(equipment))
	for id := range equipment {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := newTable("AE TITLE", "NAME", "ORDER", "CAPEX", "MONTHLY DEP", "MONTHS", "INSTALLED")
	for _, id := range ids {
		e := equipment[id]
		installed := "-"
		if e.InstallDate != nil {
			installed = e.InstallDate.String()
		}
		t.Row(id, e.Name, e.OrderNum, money(e.CapEx), money(e.MonthlyDep), strconv.Itoa(e.DepMonths), installed)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

func writeDeviceTable(w io.Writer, resp *core.DeviceResponse) error {
	info := resp.DeviceInfo
	if _, err := fmt.Fprintf(w, "Order %s  CapEx %s  Monthly depreciation %s over %d months  (today %s)\n",
		info.OrderNum, money(info.CapEx), money(info.MonthlyDep), info.DepMonths, resp.TodayStr); err != nil {
		return err
	}

	t := newTable("MONTH", "CODE", "SERVICE", "QTY", "PRICE", "COST", "REVENUE", "PROFIT", "MARGIN %")
	for _, r := range resp.PACSDataDetails {
		t.Row(r.YearMonth, r.ServiceCode, r.ServiceName,
			strconv.FormatFloat(r.OrderQty, 'f', -1, 64),
			money(r.UnitPrice), money(r.UnitCost), money(r.RevenuePL), money(r.Profit),
			strconv.FormatFloat(r.MarginPct, 'f', 1, 64))
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

func writeSummaryTable(w io.Writer, months []core.MonthSummary) error {
	t := newTable("MONTH", "REVENUE", "CUM. REVENUE", "EXPENSE", "CUM. EXPENSE", "DEPRECIATION", "")
	for _, m := range months {
		marker := ""
		if m.IsFuture {
			marker = "forecast"
		}
		t.Row(m.YearMonth, money(m.RevenuePL), money(m.CumulativeRevenue),
			money(m.Expense), money(m.CumulativeExpense), money(m.Depreciation), marker)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}
