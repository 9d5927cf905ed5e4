package birthday

import "time"

// DateKeyFormat is the calendar-date key used by the delivery ledger.
// Lexicographic order on keys equals chronological order.
const DateKeyFormat = "2006-01-02"

// DateKey formats t's calendar date in its own location.
func DateKey(t time.Time) string { return t.Format(DateKeyFormat) }

// Midnight truncates t to 00:00 in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntilNextOccurrence computes how many days lie between ref's
// calendar date and the next occurrence of the yearly (month, day) date.
//
// Feb 29 falls back to Feb 28 in non-leap years; the fallback is applied
// per candidate year, so a Feb-29 birthday observed from March of a
// non-leap year targets Feb 28 (or 29) of the following year.
//
// ok is false for month/day combinations that are invalid in every year
// (e.g. 04-31). The result is in [0, 366]; 0 means ref's date is the
// occurrence.
func DaysUntilNextOccurrence(month, day int, ref time.Time) (days int, ok bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}

	// Date math happens on UTC midnights so local DST transitions cannot
	// skew the day difference.
	y, rm, rd := ref.Date()
	refDate := time.Date(y, rm, rd, 0, 0, 0, 0, time.UTC)

	cand, ok := occurrenceIn(y, month, day)
	if !ok {
		return 0, false
	}
	if cand.Before(refDate) {
		if cand, ok = occurrenceIn(y+1, month, day); !ok {
			return 0, false
		}
	}

	return int(cand.Sub(refDate) / (24 * time.Hour)), true
}

// occurrenceIn builds the occurrence date for one specific year, applying
// the leap-day fallback for that year only.
func occurrenceIn(year, month, day int) (time.Time, bool) {
	if month == 2 && day == 29 && !isLeapYear(year) {
		day = 28
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Apr 31 -> May 1); treat that as invalid.
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
