package services

import (
	"context"
	"strings"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
)

// ExpenseKey is the sapMap key of one order's expenses in one month.
func ExpenseKey(orderNum, yearMonth string) string {
	return orderNum + "-" + yearMonth
}

// compactExpenseKey is the "{orderNum}-{YYYYMM}" spelling found in older
// ledger exports.
func compactExpenseKey(orderNum, yearMonth string) string {
	return orderNum + "-" + strings.Replace(yearMonth, "-", "", 1)
}

// monthlyExpense looks the month up under the dashed key first, then the
// compact one. Missing months are zero.
func monthlyExpense(sapMap map[string]float64, orderNum, yearMonth string) float64 {
	if v, ok := sapMap[ExpenseKey(orderNum, yearMonth)]; ok {
		return v
	}
	return sapMap[compactExpenseKey(orderNum, yearMonth)]
}

// MonthlySummary folds a device response into one point per timeline month.
// Months after todayStr are projections and carry no revenue or expense.
// Depreciation is booked for the first depMonths months of the timeline and
// omitted entirely when serviceFilter narrows revenue to one procedure code.
func (s *DeviceService) MonthlySummary(ctx context.Context, aeTitle, serviceFilter string) ([]core.MonthSummary, error) {
	resp, err := s.BuildDeviceResponse(ctx, aeTitle)
	if err != nil {
		return nil, err
	}
	serviceFilter = core.NormalizeID(serviceFilter)
	info := resp.DeviceInfo

	revenue := make(map[string]float64)
	for _, row := range resp.PACSDataDetails {
		if serviceFilter != "" && row.ServiceCode != serviceFilter {
			continue
		}
		revenue[row.YearMonth] += row.RevenuePL
	}

	out := make([]core.MonthSummary, 0, len(resp.AllUniqueDates))
	var cumRevenue, cumExpense float64
	for i, date := range resp.AllUniqueDates {
		ym := date[:len(core.YearMonthLayout)]
		future := resp.TodayStr != "" && date > resp.TodayStr

		point := core.MonthSummary{
			Date:      date,
			YearMonth: ym,
			IsFuture:  future,
			CapEx:     info.CapEx,
		}
		if !future {
			point.RevenuePL = revenue[ym]
			if info.OrderNum != "" {
				point.Expense = monthlyExpense(resp.SAPMap, info.OrderNum, ym)
			}
		}
		cumRevenue += point.RevenuePL
		cumExpense += point.Expense
		point.CumulativeRevenue = cumRevenue
		point.CumulativeExpense = cumExpense

		if i < info.DepMonths && serviceFilter == "" {
			point.Depreciation = info.MonthlyDep
		}
		out = append(out, point)
	}

	s.logger.DebugContext(ctx, "Monthly summary built",
		applog.FieldOperation, applog.OpSummarize,
		applog.FieldAETitle, core.NormalizeID(aeTitle),
		"service", serviceFilter,
		applog.FieldTimelineLen, len(out),
	)
	return out, nil
}
