package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"birthdayd/internal/birthday"
)

// memoryStore mirrors the sqlite semantics (cascades, alias uniqueness,
// first-writer-wins ledger) without a file on disk.
type memoryStore struct {
	mu sync.RWMutex

	closed   bool
	seq      int64
	aliasSeq int64

	entities map[int64]birthday.Entity
	settings *birthday.Settings
	// delivered: entity id -> date key -> notified at
	delivered map[int64]map[string]time.Time
}

func newMemory() Store {
	return &memoryStore{
		entities:  map[int64]birthday.Entity{},
		delivered: map[int64]map[string]time.Time{},
	}
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func cloneEntity(e birthday.Entity) birthday.Entity {
	cp := e
	cp.BirthYear = clonePtr(e.BirthYear)
	cp.BirthMonth = clonePtr(e.BirthMonth)
	cp.BirthDay = clonePtr(e.BirthDay)
	cp.NotifySound = clonePtr(e.NotifySound)
	cp.Aliases = append([]birthday.Alias(nil), e.Aliases...)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortByName(list []birthday.Entity) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].ID < list[j].ID
	})
}

func (s *memoryStore) ListAll(ctx context.Context) ([]birthday.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]birthday.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, cloneEntity(e))
	}
	sortByName(out)
	return out, nil
}

func (s *memoryStore) ListReminderEligible(ctx context.Context) ([]birthday.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var out []birthday.Entity
	for _, e := range s.entities {
		if e.NotifyEnabled && e.HasBirthday() {
			out = append(out, cloneEntity(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) GetByID(ctx context.Context, id int64) (birthday.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return birthday.Entity{}, err
	}
	e, ok := s.entities[id]
	if !ok {
		return birthday.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	return cloneEntity(e), nil
}

func (s *memoryStore) Search(ctx context.Context, keyword string) ([]birthday.Entity, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListAll(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var match func(e birthday.Entity) bool
	if month, day, ok := parseDatePattern(keyword); ok {
		match = func(e birthday.Entity) bool {
			if e.BirthMonth == nil || *e.BirthMonth != month {
				return false
			}
			return day == 0 || (e.BirthDay != nil && *e.BirthDay == day)
		}
	} else {
		needle := strings.ToLower(keyword)
		match = func(e birthday.Entity) bool {
			if strings.Contains(strings.ToLower(e.Name), needle) ||
				strings.Contains(strings.ToLower(e.Note), needle) {
				return true
			}
			for _, a := range e.Aliases {
				if strings.Contains(strings.ToLower(a.Name), needle) {
					return true
				}
			}
			return false
		}
	}

	var out []birthday.Entity
	for _, e := range s.entities {
		if match(e) {
			out = append(out, cloneEntity(e))
		}
	}
	sortByName(out)
	return out, nil
}

func (s *memoryStore) Add(ctx context.Context, e *birthday.Entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	s.seq++
	e.ID = s.seq
	e.CreatedAt, e.UpdatedAt = now, now
	for i := range e.Aliases {
		s.aliasSeq++
		e.Aliases[i].ID = s.aliasSeq
		e.Aliases[i].EntityID = e.ID
		e.Aliases[i].CreatedAt = now
	}
	s.entities[e.ID] = cloneEntity(*e)
	return e.ID, nil
}

func (s *memoryStore) Update(ctx context.Context, e *birthday.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	old, ok := s.entities[e.ID]
	if !ok {
		return fmt.Errorf("entity %d: %w", e.ID, ErrNotFound)
	}
	now := time.Now().UTC()
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = now
	for i := range e.Aliases {
		s.aliasSeq++
		e.Aliases[i].ID = s.aliasSeq
		e.Aliases[i].EntityID = e.ID
		e.Aliases[i].CreatedAt = now
	}
	s.entities[e.ID] = cloneEntity(*e)
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	delete(s.entities, id)
	// Cascade: ledger rows go with the entity, same as the sqlite FK.
	delete(s.delivered, id)
	return nil
}

func (s *memoryStore) Settings(ctx context.Context) (birthday.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return birthday.Settings{}, err
	}
	if s.settings == nil {
		def := birthday.DefaultSettings()
		s.settings = &def
	}
	return *s.settings, nil
}

func (s *memoryStore) SaveSettings(ctx context.Context, settings birthday.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.settings = &settings
	return nil
}

func (s *memoryStore) IsDelivered(ctx context.Context, entityID int64, dateKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	_, ok := s.delivered[entityID][dateKey]
	return ok, nil
}

func (s *memoryStore) RecordDelivered(ctx context.Context, entityID int64, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	m := s.delivered[entityID]
	if m == nil {
		m = map[string]time.Time{}
		s.delivered[entityID] = m
	}
	if _, exists := m[dateKey]; !exists {
		m[dateKey] = time.Now().UTC()
	}
	return nil
}

func (s *memoryStore) PruneDeliveredBefore(ctx context.Context, cutoffKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	for id, m := range s.delivered {
		for key := range m {
			if key < cutoffKey {
				delete(m, key)
				n++
			}
		}
		if len(m) == 0 {
			delete(s.delivered, id)
		}
	}
	return n, nil
}
