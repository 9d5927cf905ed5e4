package birthday

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestDaysUntilNextOccurrence(t *testing.T) {
	cases := []struct {
		name       string
		month, day int
		ref        time.Time
		want       int
		ok         bool
	}{
		{"today", 6, 15, date(2025, time.June, 15), 0, true},
		{"tomorrow", 6, 15, date(2025, time.June, 14), 1, true},
		{"two days", 6, 15, date(2025, time.June, 13), 2, true},
		{"passed, rolls to next year", 6, 15, date(2025, time.June, 16), 364, true},
		{"year boundary", 1, 1, date(2025, time.December, 31), 1, true},
		{"feb 29 on leap day", 2, 29, date(2024, time.February, 29), 0, true},
		// Non-leap year: candidate falls back to Feb 28.
		{"feb 29 fallback same year", 2, 29, date(2025, time.February, 20), 8, true},
		// Scenario: ref 2025-03-01, next occurrence is 2026-02-28 (fallback
		// re-applied for the following non-leap year), 364 days away.
		{"feb 29 fallback next year", 2, 29, date(2025, time.March, 1), 364, true},
		// Ref in leap year after Feb: next year is non-leap, falls to Feb 28.
		{"feb 29 after leap day", 2, 29, date(2024, time.March, 1), 364, true},
		{"invalid month", 13, 1, date(2025, time.June, 1), 0, false},
		{"invalid day", 6, 32, date(2025, time.June, 1), 0, false},
		{"apr 31 never valid", 4, 31, date(2025, time.January, 1), 0, false},
		{"missing handled upstream, zero month", 0, 15, date(2025, time.June, 1), 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DaysUntilNextOccurrence(tc.month, tc.day, tc.ref)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("days = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDaysUntilNextOccurrenceRange(t *testing.T) {
	// Property: for every valid non-leap-day (month, day) and a spread of
	// reference dates, the result stays in [0, 365] and adding it to the
	// reference lands exactly on the occurrence.
	refs := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.February, 29),
		date(2024, time.July, 31),
		date(2025, time.March, 1),
		date(2025, time.December, 31),
	}
	daysInMonth := []int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

	for _, ref := range refs {
		for m := 1; m <= 12; m++ {
			for d := 1; d <= daysInMonth[m-1]; d++ {
				got, ok := DaysUntilNextOccurrence(m, d, ref)
				if !ok {
					t.Fatalf("(%d, %d) from %s: unexpectedly invalid", m, d, ref.Format(DateKeyFormat))
				}
				if got < 0 || got > 365 {
					t.Fatalf("(%d, %d) from %s: days %d out of [0, 365]", m, d, ref.Format(DateKeyFormat), got)
				}
				landed := Midnight(ref).AddDate(0, 0, got)
				if int(landed.Month()) != m || landed.Day() != d {
					t.Fatalf("(%d, %d) from %s: ref+%d = %s, not the occurrence",
						m, d, ref.Format(DateKeyFormat), got, landed.Format(DateKeyFormat))
				}
			}
		}
	}
}

func TestDaysUntilNextOccurrenceIgnoresTimeOfDay(t *testing.T) {
	ref := time.Date(2025, time.June, 14, 23, 59, 59, 0, time.Local)
	got, ok := DaysUntilNextOccurrence(6, 15, ref)
	if !ok || got != 1 {
		t.Fatalf("got (%d, %v), want (1, true)", got, ok)
	}
}

func TestDaysUntilNextOccurrenceDeterministic(t *testing.T) {
	ref := date(2025, time.March, 1)
	a, okA := DaysUntilNextOccurrence(2, 29, ref)
	b, okB := DaysUntilNextOccurrence(2, 29, ref)
	if a != b || okA != okB {
		t.Fatalf("not deterministic: (%d,%v) vs (%d,%v)", a, okA, b, okB)
	}
}

func TestDateKeyOrder(t *testing.T) {
	a := DateKey(date(2025, time.September, 30))
	b := DateKey(date(2025, time.October, 1))
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}
