// Package app assembles the daemon: configuration, logging, storage,
// notification channels and the reminder loop, plus hot reload of the
// config file while running.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/config"
	"birthdayd/internal/eventbus"
	"birthdayd/internal/notifier"
	"birthdayd/internal/reminder"
	"birthdayd/internal/runtime/supervisor"
	"birthdayd/internal/storage"
	"birthdayd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logs   *logx.Service
	bus    eventbus.Bus
	store  storage.Store
	notif  *notifier.Service
	remind *reminder.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	notifSvc, err := notifier.New(mapNotifyConfig(cfg), log.With(logx.String("comp", "notifier")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rc, err := mapReminderConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if spec := strings.TrimSpace(cfg.Reminder.Cron); spec != "" {
		if err := reminder.ValidateCronSpec(spec); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("reminder.cron: %w", err)
		}
	}
	remindSvc := reminder.New(rc, store, notifSvc, bus, log.With(logx.String("comp", "reminder")))

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		store:  store,
		notif:  notifSvc,
		remind: remindSvc,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		// Everything the mapping helpers can reject, reject before commit
		// so a bad hot-reload never reaches the services.
		if spec := strings.TrimSpace(cfg.Reminder.Cron); spec != "" {
			if err := reminder.ValidateCronSpec(spec); err != nil {
				return fmt.Errorf("reminder.cron: %w", err)
			}
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapReminderConfig(cfg)
		return err
	})

	if err := a.remind.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", a.reloadLoop)
	a.sup.Go("eventbus.log", a.eventLoop)

	// One evaluation right away so a reminder due now is not deferred to
	// the first cron tick.
	a.sup.Go("reminder.initial", func(ctx context.Context) error {
		a.remind.TriggerNow(ctx)
		return nil
	})

	a.logUpcoming(ctx)
	a.log.Info("daemon started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.remind.Stop(ctx)
	if a.sup != nil {
		a.sup.Stop(ctx)
	}
	err := a.store.Close()
	a.log.Info("daemon stopped")
	_ = a.logs.Close()
	return err
}

// reloadLoop applies committed config updates to the running services.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts; only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(cfg, last)
			last = cfg
		}
	}
}

func (a *App) apply(cfg, last *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	if err := a.notif.Apply(mapNotifyConfig(cfg)); err != nil {
		a.log.Warn("notify config not applied; keeping previous", logx.Err(err))
	}

	rc, err := mapReminderConfig(cfg)
	if err != nil {
		// The validator runs before commit, so this is unreachable in
		// practice; log rather than trust that forever.
		a.log.Warn("reminder config not applied; keeping previous", logx.Err(err))
	} else if err := a.remind.Apply(rc); err != nil {
		a.log.Warn("reminder schedule not applied", logx.Err(err))
	}

	if last != nil && cfg.Storage != last.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	if a.bus != nil {
		a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied})
	}
	a.log.Info("config reloaded")
}

// eventLoop surfaces bus traffic in the debug log.
func (a *App) eventLoop(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// logUpcoming writes a short next-birthdays summary at startup.
func (a *App) logUpcoming(ctx context.Context) {
	entities, err := a.store.ListAll(ctx)
	if err != nil {
		a.log.Warn("upcoming summary unavailable", logx.Err(err))
		return
	}
	now := time.Now()
	for _, t := range birthday.Upcoming(entities, now, 5) {
		fields := []logx.Field{
			logx.String("name", t.Entity.Name),
			logx.Int("in_days", t.DaysUntil),
		}
		if age, ok := t.Entity.AgeTurning(now); ok {
			fields = append(fields, logx.Int("turning", age))
		}
		a.log.Info("upcoming birthday", fields...)
	}
}
