package reminder

import (
	"context"
	"fmt"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/eventbus"
	"birthdayd/pkg/logx"
)

// CycleStats summarizes one evaluation pass. Published on the event bus
// with TypeCycleFinished.
type CycleStats struct {
	At         time.Time `json:"at"`
	Targets    int       `json:"targets"`
	Dispatched int       `json:"dispatched"`
	Skipped    int       `json:"skipped"` // already delivered today
	Failed     int       `json:"failed"`
	Pruned     int64     `json:"pruned"`
	Canceled   bool      `json:"canceled,omitempty"`
}

// Dispatched describes one delivered reminder. Published on the event
// bus with TypeReminderSent.
type Dispatched struct {
	EntityID  int64  `json:"entity_id"`
	Name      string `json:"name"`
	DaysUntil int    `json:"days_until"`
	DateKey   string `json:"date_key"`
}

// runCycle is one full evaluation pass. Errors returned here are
// cycle-fatal (could not even list targets); per-entity failures are
// logged and isolated.
func (s *Service) runCycle(ctx context.Context) error {
	// One snapshot per cycle; every entity sees the same "now".
	now := s.clock()

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	hour, minute, err := settings.NotifyClock()
	if err != nil {
		return err
	}
	if !withinWindow(now, hour, minute, cfg.Tolerance) {
		s.log.Debug("outside reminder window; tick is a no-op",
			logx.Time("now", now),
			logx.String("notify_at", settings.NotifyAt))
		return nil
	}

	entities, err := s.store.ListReminderEligible(ctx)
	if err != nil {
		return fmt.Errorf("list eligible entities: %w", err)
	}

	targets := birthday.FindTargets(entities, now, settings.DefaultDaysBefore)
	// The dedup key is today's date, not the birthday: an entity inside a
	// multi-day window is notified at most once per calendar day, and only
	// until the first successful dispatch.
	dateKey := birthday.DateKey(now)

	stats := CycleStats{At: now, Targets: len(targets)}
	for _, target := range targets {
		// Cancellation gates the next entity, never the current one.
		if ctx.Err() != nil {
			stats.Canceled = true
			break
		}
		s.processTarget(ctx, target, dateKey, settings.DefaultSound, &stats)
	}

	// Ledger pruning is advisory cleanup; a failure must not fail the pass.
	cutoff := birthday.DateKey(birthday.Midnight(now).AddDate(0, 0, -cfg.RetainDays))
	if pruned, err := s.store.PruneDeliveredBefore(ctx, cutoff); err != nil {
		s.log.Warn("ledger prune failed", logx.Err(err))
	} else {
		stats.Pruned = pruned
	}

	s.log.Info("evaluation cycle finished",
		logx.Int("targets", stats.Targets),
		logx.Int("dispatched", stats.Dispatched),
		logx.Int("skipped", stats.Skipped),
		logx.Int("failed", stats.Failed),
		logx.Int64("pruned", stats.Pruned))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFinished, Data: stats})
	}
	return nil
}

// processTarget handles one entity: ledger check, dispatch, ledger write.
// Failures are logged and scoped to this entity.
func (s *Service) processTarget(ctx context.Context, target birthday.Target, dateKey string, defaultSound bool, stats *CycleStats) {
	e := target.Entity

	delivered, err := s.store.IsDelivered(ctx, e.ID, dateKey)
	if err != nil {
		stats.Failed++
		s.log.Warn("ledger check failed; entity skipped this cycle",
			logx.Int64("entity", e.ID), logx.Err(err))
		return
	}
	if delivered {
		stats.Skipped++
		return
	}

	sound := defaultSound
	if e.NotifySound != nil {
		sound = *e.NotifySound
	}

	if err := s.notif.Notify(ctx, target, sound); err != nil {
		// Not recorded, so the next in-window cycle retries.
		stats.Failed++
		s.log.Warn("dispatch failed; will retry next cycle",
			logx.Int64("entity", e.ID),
			logx.String("name", e.Name),
			logx.Err(err))
		return
	}

	// Record immediately after dispatch. If this write fails the next
	// cycle may notify again; that is the accepted degraded mode, and it
	// is never silent.
	if err := s.store.RecordDelivered(ctx, e.ID, dateKey); err != nil {
		stats.Failed++
		s.log.Error("delivered but ledger write failed; duplicate possible next cycle",
			logx.Int64("entity", e.ID), logx.Err(err))
		return
	}

	stats.Dispatched++
	s.log.Info("reminder dispatched",
		logx.Int64("entity", e.ID),
		logx.String("name", e.Name),
		logx.Int("days_until", target.DaysUntil))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeReminderSent,
			Data: Dispatched{EntityID: e.ID, Name: e.Name, DaysUntil: target.DaysUntil, DateKey: dateKey},
		})
	}
}

// withinWindow reports whether now's time of day lies inside the
// symmetric tolerance band around (hour, minute), wrapping correctly
// around midnight.
func withinWindow(now time.Time, hour, minute int, tolerance time.Duration) bool {
	nowOffset := time.Duration(now.Hour())*time.Hour +
		time.Duration(now.Minute())*time.Minute +
		time.Duration(now.Second())*time.Second
	targetOffset := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute

	diff := nowOffset - targetOffset
	if diff < 0 {
		diff = -diff
	}
	if diff > 12*time.Hour {
		diff = 24*time.Hour - diff
	}
	return diff <= tolerance
}
