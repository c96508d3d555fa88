package calendar

import (
	"testing"
	"time"
)

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"2024-1-01",
		"2024/01/01",
		"24-01-01",
		"2024-00-10",
		"2024-13-01",
		"2024-04-31",
		"2023-02-29",
		"1900-02-29",
		"2024-02-30",
		"abcd-01-01",
		"0000-01-01",
		"2024-01-01x",
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err == nil {
				t.Fatalf("expected %q to be rejected", in)
			}
			if got := Ordinal(in); got != Invalid {
				t.Fatalf("Ordinal(%q) = %d, want Invalid", in, got)
			}
		})
	}
}

func TestParseAcceptsLeapDays(t *testing.T) {
	for _, in := range []string{"2024-02-29", "2000-02-29", "1600-02-29"} {
		if _, err := Parse(in); err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
	}
}

func TestOrdinalIsConsecutiveAcrossBoundaries(t *testing.T) {
	pairs := [][2]string{
		{"2024-02-28", "2024-02-29"},
		{"2024-02-29", "2024-03-01"},
		{"2023-02-28", "2023-03-01"},
		{"2023-12-31", "2024-01-01"},
		{"2024-01-31", "2024-02-01"},
		{"1900-02-28", "1900-03-01"},
		{"2000-02-28", "2000-02-29"},
		{"1999-12-31", "2000-01-01"},
	}
	for _, p := range pairs {
		a, b := Ordinal(p[0]), Ordinal(p[1])
		if a == Invalid || b == Invalid {
			t.Fatalf("unexpected invalid ordinal for %v", p)
		}
		if b-a != 1 {
			t.Fatalf("%s -> %s: got delta %d, want 1", p[0], p[1], b-a)
		}
	}
}

func TestOrdinalMatchesTimePackageSpan(t *testing.T) {
	start := time.Date(1896, time.January, 1, 0, 0, 0, 0, time.UTC)
	base := FromTime(start).Ordinal()
	// Walk ~250 years day by day and compare against time arithmetic.
	for i := 0; i < 250*366; i++ {
		day := start.AddDate(0, 0, i)
		d := FromTime(day)
		if got := d.Ordinal() - base; got != int64(i) {
			t.Fatalf("%s: offset %d, want %d", d, got, i)
		}
		if back := FromOrdinal(d.Ordinal()); back != d {
			t.Fatalf("FromOrdinal(%d) = %s, want %s", d.Ordinal(), back, d)
		}
	}
}

func TestAddDaysAndDaysUntil(t *testing.T) {
	d := MustParse("2024-01-01")
	if got := d.AddDays(30).String(); got != "2024-01-31" {
		t.Fatalf("AddDays(30) = %s", got)
	}
	if got := d.AddDays(60).String(); got != "2024-03-01" {
		t.Fatalf("AddDays(60) = %s", got)
	}
	if got := d.AddDays(-1).String(); got != "2023-12-31" {
		t.Fatalf("AddDays(-1) = %s", got)
	}
	if got := d.DaysUntil(MustParse("2025-01-01")); got != 366 {
		t.Fatalf("DaysUntil leap year = %d, want 366", got)
	}
	if !d.Before(d.AddDays(1)) || d.Before(d) {
		t.Fatalf("Before mismatch")
	}
}

func TestDaysInMonth(t *testing.T) {
	if DaysInMonth(2024, 2) != 29 || DaysInMonth(2023, 2) != 28 || DaysInMonth(2100, 2) != 28 {
		t.Fatalf("february lengths wrong")
	}
	if DaysInMonth(2024, 0) != 0 || DaysInMonth(2024, 13) != 0 {
		t.Fatalf("expected 0 for out of range month")
	}
}

func TestFromOrdinalOutOfRange(t *testing.T) {
	if !FromOrdinal(0).IsZero() || !FromOrdinal(-5).IsZero() {
		t.Fatalf("expected zero date for non-positive ordinal")
	}
}
