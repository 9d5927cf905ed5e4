package birthday

import (
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func entity(name string, month, day int) Entity {
	return Entity{
		Name:          name,
		BirthMonth:    intp(month),
		BirthDay:      intp(day),
		NotifyEnabled: true,
	}
}

func TestFindTargetsWindow(t *testing.T) {
	e := entity("June", 6, 15)

	// look-ahead 1: due at 1 day out, not at 2 days out
	got := FindTargets([]Entity{e}, date(2025, time.June, 14), 1)
	if len(got) != 1 || got[0].DaysUntil != 1 {
		t.Fatalf("expected one target at daysUntil=1, got %+v", got)
	}
	got = FindTargets([]Entity{e}, date(2025, time.June, 13), 1)
	if len(got) != 0 {
		t.Fatalf("expected no targets two days out, got %+v", got)
	}
	// day-of is inside the window
	got = FindTargets([]Entity{e}, date(2025, time.June, 15), 1)
	if len(got) != 1 || got[0].DaysUntil != 0 {
		t.Fatalf("expected target on the day itself, got %+v", got)
	}
}

func TestFindTargetsEligibility(t *testing.T) {
	ref := date(2025, time.June, 15)

	disabled := entity("Disabled", 6, 15)
	disabled.NotifyEnabled = false

	noDay := entity("NoDay", 6, 15)
	noDay.BirthDay = nil

	noMonth := entity("NoMonth", 6, 15)
	noMonth.BirthMonth = nil

	optedOut := entity("OptedOut", 6, 15)
	optedOut.DaysBefore = DisabledDays()

	invalid := entity("Invalid", 4, 31)

	for _, lookAhead := range []int{0, 1, 7, 30} {
		got := FindTargets([]Entity{disabled, noDay, noMonth, optedOut, invalid}, ref, lookAhead)
		if len(got) != 0 {
			t.Fatalf("lookAhead=%d: ineligible entities targeted: %+v", lookAhead, got)
		}
	}
}

func TestFindTargetsOverrideResolution(t *testing.T) {
	ref := date(2025, time.June, 10) // 5 days before June 15

	wide, err := FixedDays(7)
	if err != nil {
		t.Fatalf("FixedDays: %v", err)
	}
	narrow, err := FixedDays(2)
	if err != nil {
		t.Fatalf("FixedDays: %v", err)
	}

	a := entity("Wide", 6, 15)
	a.DaysBefore = wide
	b := entity("Narrow", 6, 15)
	b.DaysBefore = narrow
	c := entity("Default", 6, 15)

	got := FindTargets([]Entity{a, b, c}, ref, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %d: %+v", len(got), got)
	}
	for _, tgt := range got {
		switch tgt.Entity.Name {
		case "Wide":
			if tgt.LookAhead != 7 {
				t.Fatalf("Wide lookAhead = %d, want 7", tgt.LookAhead)
			}
		case "Default":
			if tgt.LookAhead != 5 {
				t.Fatalf("Default lookAhead = %d, want 5", tgt.LookAhead)
			}
		default:
			t.Fatalf("unexpected target %q", tgt.Entity.Name)
		}
	}
}

func TestUpcomingOrder(t *testing.T) {
	ref := date(2025, time.June, 1)
	entities := []Entity{
		entity("zoe", 6, 3),
		entity("Anna", 6, 3),
		entity("Mid", 6, 2),
		entity("Far", 12, 24),
		{Name: "NoBirthday"},
	}
	// Upcoming ignores notification flags.
	entities[2].NotifyEnabled = false

	got := Upcoming(entities, ref, 0)
	want := []string{"Mid", "Anna", "zoe", "Far"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Entity.Name != name {
			t.Fatalf("position %d: got %q, want %q", i, got[i].Entity.Name, name)
		}
	}

	limited := Upcoming(entities, ref, 2)
	if len(limited) != 2 || limited[0].Entity.Name != "Mid" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}
