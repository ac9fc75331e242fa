// Package core holds the domain types of the utilization dashboard and the
// normalization rules shared by every reader of the reference tables.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// YearMonthLayout is the month label used by procedure facts and ledger keys.
const YearMonthLayout = "2006-01"

var nullTokens = map[string]struct{}{
	"none": {},
	"nan":  {},
	"null": {},
	"na":   {},
}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05.999999999-07",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// NormalizeID returns the join-key form of an identifier or code.
func NormalizeID(s string) string {
	return strings.TrimSpace(s)
}

// IsNullToken reports whether a normalized identifier is a textual null
// such as "None" or "NaN".
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

// ParseDecimal coerces a raw cell to a number. ok is false for empty or
// unparseable input.
func ParseDecimal(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DecimalOrZero coerces a raw cell to a number, defaulting to zero.
func DecimalOrZero(s string) decimal.Decimal {
	d, _ := ParseDecimal(s)
	return d
}

// ParseDate coerces a raw cell to a UTC calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsNullToken(s) || strings.EqualFold(s, "nat") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// MonthStart truncates t to the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// YearMonth formats the YYYY-MM label of t.
func YearMonth(t time.Time) string {
	return t.Format(YearMonthLayout)
}

// ParseYearMonth parses a YYYY-MM label into the first day of that month.
func ParseYearMonth(s string) (time.Time, bool) {
	if len(s) != len(YearMonthLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(YearMonthLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
