package birthday

import "fmt"

type daysBeforeMode int8

const (
	daysBeforeDefault daysBeforeMode = iota
	daysBeforeDisabled
	daysBeforeFixed
)

// DaysBefore is a per-entity override for the reminder look-ahead window.
//
// It is a tagged variant: UseDefault (fall back to the global setting),
// Disabled (never remind this entity), or a fixed day count. Construct it
// through the functions below; the zero value is UseDefault.
type DaysBefore struct {
	mode daysBeforeMode
	days int
}

// UseDefaultDays falls back to Settings.DefaultDaysBefore.
func UseDefaultDays() DaysBefore { return DaysBefore{} }

// DisabledDays suppresses reminders for the entity regardless of the
// enabled flag.
func DisabledDays() DaysBefore { return DaysBefore{mode: daysBeforeDisabled} }

// FixedDays returns an override of n days, n in [MinDaysBefore, MaxDaysBefore].
func FixedDays(n int) (DaysBefore, error) {
	if n < MinDaysBefore || n > MaxDaysBefore {
		return DaysBefore{}, fmt.Errorf("days before %d out of range %d-%d", n, MinDaysBefore, MaxDaysBefore)
	}
	return DaysBefore{mode: daysBeforeFixed, days: n}, nil
}

func (d DaysBefore) IsDefault() bool  { return d.mode == daysBeforeDefault }
func (d DaysBefore) IsDisabled() bool { return d.mode == daysBeforeDisabled }

// Resolve returns the effective look-ahead for this entity.
// ok is false when the override disables reminders.
func (d DaysBefore) Resolve(defaultDays int) (days int, ok bool) {
	switch d.mode {
	case daysBeforeDisabled:
		return 0, false
	case daysBeforeFixed:
		return d.days, true
	default:
		return defaultDays, true
	}
}

func (d DaysBefore) String() string {
	switch d.mode {
	case daysBeforeDisabled:
		return "disabled"
	case daysBeforeFixed:
		return fmt.Sprintf("%dd", d.days)
	default:
		return "default"
	}
}

// Storage encoding: NULL = UseDefault, -1 = Disabled, n = FixedDays(n).
// Kept here so every boundary (sqlite, memory, import) shares one codec.

// EncodeDaysBefore returns (value, valid) for a nullable integer column.
func EncodeDaysBefore(d DaysBefore) (int64, bool) {
	switch d.mode {
	case daysBeforeDisabled:
		return -1, true
	case daysBeforeFixed:
		return int64(d.days), true
	default:
		return 0, false
	}
}

// DecodeDaysBefore is the inverse of EncodeDaysBefore. Out-of-range stored
// values are rejected rather than passed around as bare integers.
func DecodeDaysBefore(v int64, valid bool) (DaysBefore, error) {
	if !valid {
		return UseDefaultDays(), nil
	}
	if v == -1 {
		return DisabledDays(), nil
	}
	return FixedDays(int(v))
}
