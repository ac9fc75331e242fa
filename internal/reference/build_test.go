package reference

import (
	"testing"

	"bmeutil/internal/sources"
)

func TestBuildEquipmentDepreciation(t *testing.T) {
	rows := []sources.EquipmentRow{
		{AETitle: " AE1 ", CapEx: "120000", DepYears: "5", OrderNum: " 4500012345 ", Name: "CT", Brand: "Acme", Model: "X1", InstallDate: "2022-01-15"},
		{AETitle: "AE2", CapEx: "90000", DepYears: "2.5", OrderNum: "None"},
		{AETitle: "AE3", CapEx: "30600", DepYears: "2.55"},
	}
	got, dropped := BuildEquipment(rows)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}

	ae1, ok := got["AE1"]
	if !ok {
		t.Fatalf("AE1 missing: %v", got)
	}
	if ae1.DepMonths != 60 || ae1.MonthlyDep != 2000 || ae1.CapEx != 120000 {
		t.Fatalf("unexpected depreciation: %+v", ae1)
	}
	if ae1.OrderNum != "4500012345" {
		t.Fatalf("order number not trimmed: %q", ae1.OrderNum)
	}
	if ae1.InstallDate == nil || ae1.InstallDate.String() != "2022-01-15" {
		t.Fatalf("unexpected install date: %v", ae1.InstallDate)
	}

	ae2 := got["AE2"]
	if ae2.DepMonths != 30 || ae2.MonthlyDep != 3000 {
		t.Fatalf("unexpected depreciation: %+v", ae2)
	}
	if ae2.OrderNum != "" || ae2.InstallDate != nil {
		t.Fatalf("expected blank order and nil install date: %+v", ae2)
	}

	// 2.55 years is 30.6 months: the period rounds, the monthly charge does not
	ae3 := got["AE3"]
	if ae3.DepMonths != 31 || ae3.MonthlyDep != 1000 {
		t.Fatalf("unexpected fractional depreciation: %+v", ae3)
	}
}

func TestBuildEquipmentFilters(t *testing.T) {
	rows := []sources.EquipmentRow{
		{AETitle: "", CapEx: "1", DepYears: "1"},
		{AETitle: "none", CapEx: "1", DepYears: "1"},
		{AETitle: "NaN", CapEx: "1", DepYears: "1"},
		{AETitle: " NULL ", CapEx: "1", DepYears: "1"},
		{AETitle: "Na", CapEx: "1", DepYears: "1"},
		{AETitle: "ZERO", CapEx: "0", DepYears: "5"},
		{AETitle: "NEG", CapEx: "-10", DepYears: "5"},
		{AETitle: "TEXT", CapEx: "abc", DepYears: "5"},
		{AETitle: "NODEP", CapEx: "100", DepYears: ""},
		{AETitle: "NEGDEP", CapEx: "100", DepYears: "-1"},
		{AETitle: "TINYDEP", CapEx: "100", DepYears: "0.01"},
		{AETitle: "OK", CapEx: "100", DepYears: "1", InstallDate: "not a date"},
	}
	got, dropped := BuildEquipment(rows)
	if len(got) != 1 || dropped != len(rows)-1 {
		t.Fatalf("expected only OK to survive, got %v (dropped %d)", got, dropped)
	}
	if got["OK"].InstallDate != nil {
		t.Fatalf("unparseable install date must be nil")
	}
}

func TestBuildServicesAndCosts(t *testing.T) {
	prices, names := BuildServices([]sources.ServiceRow{
		{Code: " X001 ", Name: "Chest X-ray", Price: "500"},
		{Code: "X002", Name: "", Price: "n/a"},
		{Code: "", Name: "ignored", Price: "1"},
	})
	if prices["X001"].IntPart() != 500 || names["X001"] != "Chest X-ray" {
		t.Fatalf("unexpected X001: %v %v", prices["X001"], names["X001"])
	}
	if !prices["X002"].IsZero() {
		t.Fatalf("unparseable price must default to zero")
	}
	if _, ok := names["X002"]; ok {
		t.Fatalf("blank name must be omitted")
	}
	if len(prices) != 2 {
		t.Fatalf("empty code must be skipped: %v", prices)
	}

	costs := BuildCosts([]sources.CostRow{{Code: "X001", GrandCost: "320.5"}, {Code: "X003", GrandCost: ""}})
	if costs["X001"].String() != "320.5" || !costs["X003"].IsZero() {
		t.Fatalf("unexpected costs: %v", costs)
	}
}

func TestBuildLedger(t *testing.T) {
	got, dropped := BuildLedger([]sources.LedgerRow{
		{OrderNum: " 45 ", PostingDate: "2024-01-10", Amount: "100"},
		{OrderNum: "45", PostingDate: "2024-01-20 08:00:00", Amount: "0"},
		{OrderNum: "45", PostingDate: "bad", Amount: "10"},
		{OrderNum: "45", PostingDate: "2024-02-01", Amount: "x"},
		{OrderNum: "", PostingDate: "2024-02-01", Amount: "10"},
	})
	if dropped != 3 {
		t.Fatalf("dropped=%d want 3", dropped)
	}
	if len(got["45"]) != 2 {
		t.Fatalf("expected two entries for order 45: %+v", got)
	}
}

func TestBuildProceduresSumsAndDrops(t *testing.T) {
	got, dropped := BuildProcedures([]sources.ProcedureRow{
		{AETitle: "AE1", Code: "X001", YearMonth: "2024-01", OrderQty: "4"},
		{AETitle: " AE1", Code: "X001 ", YearMonth: "2024-01-01", OrderQty: "6"},
		{AETitle: "AE1", Code: "X002", YearMonth: "2023-12", OrderQty: "1"},
		{AETitle: "AE1", Code: "X003", YearMonth: "2024-1", OrderQty: "3"},
		{AETitle: "AE1", Code: "X004", YearMonth: "2024-02", OrderQty: "0"},
		{AETitle: "AE1", Code: "X005", YearMonth: "2024-02", OrderQty: ""},
		{AETitle: "AE2", Code: "X001", YearMonth: "2024-02", OrderQty: "2"},
	})
	if dropped != 3 {
		t.Fatalf("dropped=%d want 3", dropped)
	}
	facts := got["AE1"]
	if len(facts) != 2 {
		t.Fatalf("expected two AE1 facts, got %+v", facts)
	}
	if facts[0].YearMonth != "2023-12" || facts[1].YearMonth != "2024-01" {
		t.Fatalf("facts not ordered by month: %+v", facts)
	}
	if facts[1].Code != "X001" || facts[1].Quantity.IntPart() != 10 {
		t.Fatalf("duplicate rows not summed: %+v", facts[1])
	}
	if len(got["AE2"]) != 1 {
		t.Fatalf("AE2 facts: %+v", got["AE2"])
	}
}
