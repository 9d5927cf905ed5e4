package birthday

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLen  = 200
	MaxNoteLen  = 5000
	MaxAliasLen = 50

	MinYear = 1900
	MaxYear = 2100

	MinDaysBefore = 1
	MaxDaysBefore = 30
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = fmt.Errorf("name exceeds %d characters", MaxNameLen)
	ErrNoteTooLong  = fmt.Errorf("note exceeds %d characters", MaxNoteLen)
)

// Alias is an alternative name for an entity. Aliases are owned by their
// entity (cascade-deleted) and are unique per entity, case-insensitively.
type Alias struct {
	ID        int64
	EntityID  int64
	Name      string
	CreatedAt time.Time
}

// Entity is a tracked person.
//
// BirthYear is display-only (age); it never participates in recurrence.
// An entity is reminder-eligible only when both BirthMonth and BirthDay
// are set, NotifyEnabled is true, and DaysBefore is not Disabled.
type Entity struct {
	ID         int64
	Name       string
	BirthYear  *int
	BirthMonth *int
	BirthDay   *int
	Note       string

	DaysBefore    DaysBefore
	NotifyEnabled bool
	NotifySound   *bool // nil = use global default

	Aliases []Alias

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBirthday reports whether both month and day are present.
func (e *Entity) HasBirthday() bool {
	return e.BirthMonth != nil && e.BirthDay != nil
}

// Validate checks field ranges and the month/day combination.
// The combination check deliberately uses a leap reference year so that
// Feb 29 is accepted.
func (e *Entity) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return ErrNameTooLong
	}
	if utf8.RuneCountInString(e.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	if e.BirthYear != nil && (*e.BirthYear < MinYear || *e.BirthYear > MaxYear) {
		return fmt.Errorf("birth year %d out of range %d-%d", *e.BirthYear, MinYear, MaxYear)
	}
	if e.BirthMonth != nil && (*e.BirthMonth < 1 || *e.BirthMonth > 12) {
		return fmt.Errorf("birth month %d out of range 1-12", *e.BirthMonth)
	}
	if e.BirthDay != nil && (*e.BirthDay < 1 || *e.BirthDay > 31) {
		return fmt.Errorf("birth day %d out of range 1-31", *e.BirthDay)
	}
	if e.HasBirthday() {
		year := 2000 // leap year, so 02-29 validates
		if e.BirthYear != nil {
			year = *e.BirthYear
		}
		t := time.Date(year, time.Month(*e.BirthMonth), *e.BirthDay, 0, 0, 0, 0, time.UTC)
		if int(t.Month()) != *e.BirthMonth || t.Day() != *e.BirthDay {
			return fmt.Errorf("invalid month/day combination %02d-%02d", *e.BirthMonth, *e.BirthDay)
		}
	}
	seen := map[string]bool{}
	for _, a := range e.Aliases {
		an := strings.TrimSpace(a.Name)
		if an == "" {
			return errors.New("alias must not be empty")
		}
		if utf8.RuneCountInString(an) > MaxAliasLen {
			return fmt.Errorf("alias %q exceeds %d characters", an, MaxAliasLen)
		}
		key := strings.ToLower(an)
		if seen[key] {
			return fmt.Errorf("duplicate alias %q", an)
		}
		seen[key] = true
	}
	return nil
}

// BirthdayString renders the known parts of the birthday for display.
func (e *Entity) BirthdayString() string {
	switch {
	case e.BirthYear != nil && e.HasBirthday():
		return fmt.Sprintf("%04d-%02d-%02d", *e.BirthYear, *e.BirthMonth, *e.BirthDay)
	case e.HasBirthday():
		return fmt.Sprintf("%02d-%02d", *e.BirthMonth, *e.BirthDay)
	case e.BirthYear != nil:
		return fmt.Sprintf("%d", *e.BirthYear)
	default:
		return "unset"
	}
}

// AgeTurning returns the age the entity turns at the next occurrence
// relative to ref. Requires year, month and day to be known.
func (e *Entity) AgeTurning(ref time.Time) (int, bool) {
	if e.BirthYear == nil || !e.HasBirthday() {
		return 0, false
	}
	days, ok := DaysUntilNextOccurrence(*e.BirthMonth, *e.BirthDay, ref)
	if !ok {
		return 0, false
	}
	next := Midnight(ref).AddDate(0, 0, days)
	return next.Year() - *e.BirthYear, true
}

// Settings is the global singleton configuration persisted in the store.
type Settings struct {
	DefaultDaysBefore int    // look-ahead window, 1-30
	DefaultSound      bool   // sound-on default for entities with no override
	NotifyAt          string // time of day, "15:04"
	Language          string // BCP 47 tag, consumed by external adapters
	StartOnLogin      bool   // persisted only; registration is an external concern
}

// DefaultSettings are written on first run.
func DefaultSettings() Settings {
	return Settings{
		DefaultDaysBefore: 1,
		DefaultSound:      true,
		NotifyAt:          "12:00",
		Language:          "en-US",
		StartOnLogin:      false,
	}
}

// NotifyClock parses NotifyAt into hour and minute.
func (s Settings) NotifyClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.NotifyAt))
	if err != nil {
		return 0, 0, fmt.Errorf("settings: invalid notify time %q: %w", s.NotifyAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks settings ranges.
func (s Settings) Validate() error {
	if s.DefaultDaysBefore < MinDaysBefore || s.DefaultDaysBefore > MaxDaysBefore {
		return fmt.Errorf("settings: default days before %d out of range %d-%d",
			s.DefaultDaysBefore, MinDaysBefore, MaxDaysBefore)
	}
	_, _, err := s.NotifyClock()
	return err
}
