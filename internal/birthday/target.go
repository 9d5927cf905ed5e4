package birthday

import (
	"sort"
	"strings"
	"time"
)

// Target pairs an entity with its computed distance to the next
// occurrence and the look-ahead that selected it. Ref is the reference
// date of the computation (one snapshot per evaluation cycle).
type Target struct {
	Entity    Entity
	DaysUntil int
	LookAhead int
	Ref       time.Time
}

// FindTargets selects the entities due for a reminder: reminders enabled,
// month and day present, and next occurrence within the entity's
// effective look-ahead (override if set, else defaultDays). The window is
// inclusive on both ends; 0 means the occurrence is today.
//
// The store may pre-filter for efficiency, but this function is the
// authority on eligibility so behavior stays independent of the storage
// backend.
func FindTargets(entities []Entity, ref time.Time, defaultDays int) []Target {
	var targets []Target
	for _, e := range entities {
		if !e.NotifyEnabled || !e.HasBirthday() {
			continue
		}
		lookAhead, enabled := e.DaysBefore.Resolve(defaultDays)
		if !enabled {
			continue
		}
		days, ok := DaysUntilNextOccurrence(*e.BirthMonth, *e.BirthDay, ref)
		if !ok {
			// Invalid stored month/day: degrade to "never eligible",
			// validation upstream should have caught it.
			continue
		}
		if days <= lookAhead {
			targets = append(targets, Target{Entity: e, DaysUntil: days, LookAhead: lookAhead, Ref: ref})
		}
	}
	return targets
}

// Upcoming lists entities with a known month/day ordered by proximity:
// days-until ascending, then name ascending (case-insensitive). limit <= 0
// means no limit. Notification flags are ignored; this is the display
// read path, not the dispatch path.
func Upcoming(entities []Entity, ref time.Time, limit int) []Target {
	var out []Target
	for _, e := range entities {
		if !e.HasBirthday() {
			continue
		}
		days, ok := DaysUntilNextOccurrence(*e.BirthMonth, *e.BirthDay, ref)
		if !ok {
			continue
		}
		out = append(out, Target{Entity: e, DaysUntil: days, Ref: ref})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return strings.ToLower(out[i].Entity.Name) < strings.ToLower(out[j].Entity.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
