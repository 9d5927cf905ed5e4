package storage

import (
	"context"
	"errors"
	"strings"

	"birthdayd/internal/birthday"
	"birthdayd/pkg/logx"
)

// Store is the persistence API consumed by the reminder engine and by
// interactive CRUD callers. Every method is one transaction/unit against
// the backend; no long-lived locks are held across calls.
type Store interface {
	// Entities
	ListAll(ctx context.Context) ([]birthday.Entity, error)
	GetByID(ctx context.Context, id int64) (birthday.Entity, error)
	Add(ctx context.Context, e *birthday.Entity) (int64, error)
	Update(ctx context.Context, e *birthday.Entity) error
	Delete(ctx context.Context, id int64) error
	// Search matches name, note and alias substrings case-insensitively.
	// A keyword of the form "M/D", "M-D" or "M/" filters by birth
	// month/day instead.
	Search(ctx context.Context, keyword string) ([]birthday.Entity, error)
	// ListReminderEligible pre-filters to enabled entities with both
	// month and day set. The targeting engine re-applies the domain
	// rules regardless, so backends may over-approximate.
	ListReminderEligible(ctx context.Context) ([]birthday.Entity, error)

	// Settings singleton; defaults are created on first read.
	Settings(ctx context.Context) (birthday.Settings, error)
	SaveSettings(ctx context.Context, s birthday.Settings) error

	// Delivery ledger
	IsDelivered(ctx context.Context, entityID int64, dateKey string) (bool, error)
	RecordDelivered(ctx context.Context, entityID int64, dateKey string) error
	PruneDeliveredBefore(ctx context.Context, cutoffKey string) (int64, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return newMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
