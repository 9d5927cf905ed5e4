package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"birthdayd/internal/birthday"
	"birthdayd/pkg/logx"
)

// Service fans a reminder out to every enabled channel behind a rate
// limiter. Safe for concurrent use, though the reminder scheduler is the
// only production caller.
type Service struct {
	mu       sync.Mutex
	log      logx.Logger
	channels []Channel
	limiter  *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply rebuilds the channel set from cfg. Called at startup and on
// config reload.
func (s *Service) Apply(cfg Config) error {
	var channels []Channel
	if cfg.Desktop.Enabled {
		channels = append(channels, newDesktop(cfg.Desktop))
	}
	if cfg.Telegram.Enabled {
		tg, err := newTelegram(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		channels = append(channels, tg)
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}

	s.mu.Lock()
	s.channels = channels
	s.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	s.mu.Unlock()
	return nil
}

// SetChannels replaces the channel set directly. Test hook.
func (s *Service) SetChannels(channels ...Channel) {
	s.mu.Lock()
	s.channels = channels
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(100), 100)
	}
	s.mu.Unlock()
}

// Notify renders and delivers one reminder. It returns an error if any
// enabled channel failed, so the caller does not mark the reminder
// delivered and the next cycle retries.
func (s *Service) Notify(ctx context.Context, target birthday.Target, sound bool) error {
	s.mu.Lock()
	channels := append([]Channel(nil), s.channels...)
	limiter := s.limiter
	s.mu.Unlock()

	if len(channels) == 0 {
		return ErrNoChannels
	}
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	n := render(target, sound)

	var errs []error
	for _, ch := range channels {
		if err := ch.Send(ctx, n); err != nil {
			s.log.Warn("channel delivery failed",
				logx.String("channel", ch.Name()),
				logx.String("entity", target.Entity.Name),
				logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		s.log.Debug("reminder delivered",
			logx.String("channel", ch.Name()),
			logx.String("entity", target.Entity.Name),
			logx.Int("days_until", target.DaysUntil))
	}
	return errors.Join(errs...)
}

// render builds the user-visible message.
func render(t birthday.Target, sound bool) Notification {
	e := t.Entity

	var title, body string
	switch t.DaysUntil {
	case 0:
		title = fmt.Sprintf("🎂 %s's birthday is today!", e.Name)
	case 1:
		title = fmt.Sprintf("🎂 %s's birthday is tomorrow", e.Name)
	default:
		title = fmt.Sprintf("🎂 %s's birthday is in %d days", e.Name, t.DaysUntil)
	}

	ref := t.Ref
	if ref.IsZero() {
		ref = time.Now()
	}
	body = e.BirthdayString()
	if age, ok := e.AgeTurning(ref); ok {
		body = fmt.Sprintf("%s, turning %d", body, age)
	}
	if e.Note != "" {
		body += "\n" + e.Note
	}

	return Notification{Title: title, Body: body, Sound: sound}
}
