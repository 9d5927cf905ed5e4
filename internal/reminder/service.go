package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"birthdayd/internal/birthday"
	"birthdayd/internal/eventbus"
	"birthdayd/internal/storage"
	"birthdayd/pkg/logx"
)

// Notifier dispatches one reminder. An error means the reminder was not
// delivered; the caller leaves the ledger unwritten so a later cycle
// retries.
type Notifier interface {
	Notify(ctx context.Context, target birthday.Target, sound bool) error
}

// Config controls the evaluation loop.
type Config struct {
	// CronSpec is the tick schedule (5-field cron). Hourly by default;
	// the tolerance window keeps reminders to once a day regardless of
	// tick frequency.
	CronSpec string
	// Tolerance is the half-width of the band around the configured
	// reminder time-of-day inside which a tick evaluates.
	Tolerance time.Duration
	// RetainDays bounds the delivery ledger; older entries are pruned
	// after each pass.
	RetainDays int
}

const (
	defaultCronSpec   = "0 * * * *"
	defaultTolerance  = 30 * time.Minute
	defaultRetainDays = 30
)

func (c Config) withDefaults() Config {
	if c.CronSpec == "" {
		c.CronSpec = defaultCronSpec
	}
	if c.Tolerance <= 0 {
		c.Tolerance = defaultTolerance
	}
	if c.RetainDays <= 0 {
		c.RetainDays = defaultRetainDays
	}
	return c
}

// Service owns the recurring evaluation. Construct once per process.
type Service struct {
	log   logx.Logger
	store storage.Store
	notif Notifier
	bus   eventbus.Bus

	// clock is a test seam; production uses time.Now.
	clock func() time.Time

	// evaluating is the Idle/Evaluating state: a CAS failure means a
	// cycle is already in flight and the trigger is dropped.
	evaluating atomic.Bool

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	ctx context.Context
}

func New(cfg Config, store storage.Store, notif Notifier, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:   log,
		store: store,
		notif: notif,
		bus:   bus,
		clock: time.Now,
		cfg:   cfg.withDefaults(),
	}
}

// ValidateCronSpec reports whether spec parses as a standard 5-field
// cron expression. Used by config validation before commit.
func ValidateCronSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// Start registers the cron tick. ctx bounds all evaluations started by
// this service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.CronSpec, s.tick); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("reminder loop started",
		logx.String("cron", s.cfg.CronSpec),
		logx.Duration("tolerance", s.cfg.Tolerance))
	return nil
}

// Stop halts ticking and waits for an in-flight cycle to finish, up to
// ctx's deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	// A concurrent Apply waiting on the old schedule checks this before
	// installing its replacement.
	s.ctx = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("reminder stop timed out with a cycle in flight")
	}
}

// Apply updates the configuration. A changed cron spec restarts the
// schedule; an in-flight cycle is never interrupted.
func (s *Service) Apply(cfg Config) error {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	restart := s.c != nil && cfg.CronSpec != s.cfg.CronSpec
	s.cfg = cfg
	if !restart {
		s.mu.Unlock()
		return nil
	}
	old := s.c
	s.c = nil
	s.mu.Unlock()

	// Wait for in-flight jobs without holding s.mu: a tick that fired
	// concurrently is blocked on the mutex as its first action and must
	// acquire it to finish.
	<-old.Stop().Done()

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, s.tick); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		// Stopped while we were waiting; leave the schedule down.
		return nil
	}
	c.Start()
	s.c = c
	s.log.Info("reminder schedule updated", logx.String("cron", cfg.CronSpec))
	return nil
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.TriggerNow(ctx)
}

// TriggerNow runs one evaluation if none is in flight; a concurrent
// trigger is dropped, never queued.
func (s *Service) TriggerNow(ctx context.Context) {
	if !s.evaluating.CompareAndSwap(false, true) {
		s.log.Debug("evaluation already in flight; trigger dropped")
		return
	}
	defer s.evaluating.Store(false)

	if err := s.runCycle(ctx); err != nil {
		// Cycle-level failure: give up for now, the next tick retries
		// from scratch.
		s.log.Error("evaluation cycle failed", logx.Err(err))
	}
}
