package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsNullToken(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"none", true},
		{"None", true},
		{"NaN", true},
		{"NULL", true},
		{"na", true},
		{"NA1", false},
		{"AE1", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsNullToken(tc.in); got != tc.want {
			t.Fatalf("IsNullToken(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	if d, ok := ParseDecimal(" 120000 "); !ok || d.IntPart() != 120000 {
		t.Fatalf("unexpected parse: %v %v", d, ok)
	}
	if d, ok := ParseDecimal("12.5"); !ok || d.String() != "12.5" {
		t.Fatalf("unexpected parse: %v %v", d, ok)
	}
	for _, bad := range []string{"", "  ", "abc", "NaN", "1,2,3"} {
		if _, ok := ParseDecimal(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if !DecimalOrZero("x").IsZero() {
		t.Fatalf("expected zero default")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-15", "2024-03-15 10:20:30", "2024-03-15T10:20:30Z", "2024/03/15", "03/15/2024",
		"2024-03-15 10:20:30+07", "2024-03-15 10:20:30.123456+07", "2024-03-15 23:59:59-05:30"} {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDate(%q)=%v,%v want %v", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "None", "NaT", "15.03.2024", "garbage"} {
		if _, ok := ParseDate(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	got, ok := ParseYearMonth("2023-07")
	if !ok || !got.Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected: %v %v", got, ok)
	}
	for _, bad := range []string{"2023-7", "2023-07-01", "2023-13", ""} {
		if _, ok := ParseYearMonth(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestDateJSON(t *testing.T) {
	info := DeviceInfo{OrderNum: "4500", InstallDate: nil}
	b, _ := json.Marshal(info)
	if string(b) != `{"orderNum":"4500","capEx":0,"monthlyDep":0,"depMonths":0,"installDate":null}` {
		t.Fatalf("unexpected json: %s", b)
	}
	d := NewDate(2022, time.May, 9)
	info.InstallDate = &d
	b, _ = json.Marshal(info)
	var back DeviceInfo
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.InstallDate == nil || back.InstallDate.String() != "2022-05-09" {
		t.Fatalf("unexpected round trip: %+v", back.InstallDate)
	}
}
