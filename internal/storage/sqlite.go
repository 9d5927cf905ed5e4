package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"birthdayd/internal/birthday"
	"birthdayd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const timeFormat = time.RFC3339Nano

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	// Cascades (aliases, ledger rows) depend on this.
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Entities ----

const entityColumns = `id, name, birth_year, birth_month, birth_day, note,
notify_days_before, notify_enabled, notify_sound, created_at, updated_at`

func (s *sqliteStore) ListAll(ctx context.Context) ([]birthday.Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entity ORDER BY lower(name), id`)
}

func (s *sqliteStore) ListReminderEligible(ctx context.Context) ([]birthday.Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entity
WHERE notify_enabled = 1 AND birth_month IS NOT NULL AND birth_day IS NOT NULL
ORDER BY id`)
}

func (s *sqliteStore) GetByID(ctx context.Context, id int64) (birthday.Entity, error) {
	list, err := s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entity WHERE id = ?`, id)
	if err != nil {
		return birthday.Entity{}, err
	}
	if len(list) == 0 {
		return birthday.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	return list[0], nil
}

func (s *sqliteStore) Search(ctx context.Context, keyword string) ([]birthday.Entity, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListAll(ctx)
	}

	if month, day, ok := parseDatePattern(keyword); ok {
		if day > 0 {
			return s.queryEntities(ctx,
				`SELECT `+entityColumns+` FROM entity
WHERE birth_month = ? AND birth_day = ? ORDER BY lower(name), id`, month, day)
		}
		return s.queryEntities(ctx,
			`SELECT `+entityColumns+` FROM entity
WHERE birth_month = ? ORDER BY lower(name), id`, month)
	}

	needle := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entity
WHERE lower(name) LIKE ? ESCAPE '\'
   OR lower(note) LIKE ? ESCAPE '\'
   OR id IN (SELECT entity_id FROM alias WHERE lower(name) LIKE ? ESCAPE '\')
ORDER BY lower(name), id`, needle, needle, needle)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *sqliteStore) queryEntities(ctx context.Context, query string, args ...any) ([]birthday.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []birthday.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachAliases(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEntity(rows *sql.Rows) (birthday.Entity, error) {
	var (
		e          birthday.Entity
		year       sql.NullInt64
		month      sql.NullInt64
		day        sql.NullInt64
		daysBefore sql.NullInt64
		enabled    int64
		sound      sql.NullInt64
		created    string
		updated    string
	)
	if err := rows.Scan(&e.ID, &e.Name, &year, &month, &day, &e.Note,
		&daysBefore, &enabled, &sound, &created, &updated); err != nil {
		return birthday.Entity{}, err
	}
	e.BirthYear = nullableInt(year)
	e.BirthMonth = nullableInt(month)
	e.BirthDay = nullableInt(day)
	e.NotifyEnabled = enabled != 0
	if sound.Valid {
		v := sound.Int64 != 0
		e.NotifySound = &v
	}
	db, err := birthday.DecodeDaysBefore(daysBefore.Int64, daysBefore.Valid)
	if err != nil {
		return birthday.Entity{}, fmt.Errorf("entity %d: %w", e.ID, err)
	}
	e.DaysBefore = db
	e.CreatedAt, _ = time.Parse(timeFormat, created)
	e.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return e, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (s *sqliteStore) attachAliases(ctx context.Context, entities []birthday.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	byID := make(map[int64]*birthday.Entity, len(entities))
	ids := make([]string, 0, len(entities))
	for i := range entities {
		byID[entities[i].ID] = &entities[i]
		ids = append(ids, strconv.FormatInt(entities[i].ID, 10))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, name, created_at FROM alias
WHERE entity_id IN (`+strings.Join(ids, ",")+`) ORDER BY entity_id, id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a       birthday.Alias
			created string
		)
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Name, &created); err != nil {
			return err
		}
		a.CreatedAt, _ = time.Parse(timeFormat, created)
		if e := byID[a.EntityID]; e != nil {
			e.Aliases = append(e.Aliases, a)
		}
	}
	return rows.Err()
}

func (s *sqliteStore) Add(ctx context.Context, e *birthday.Entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entity (name, birth_year, birth_month, birth_day, note,
notify_days_before, notify_enabled, notify_sound, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(e.Name), intArg(e.BirthYear), intArg(e.BirthMonth), intArg(e.BirthDay),
		e.Note, daysBeforeArg(e.DaysBefore), boolArg(e.NotifyEnabled), boolPtrArg(e.NotifySound),
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := insertAliases(ctx, tx, id, e.Aliases, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

func (s *sqliteStore) Update(ctx context.Context, e *birthday.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE entity SET name = ?, birth_year = ?, birth_month = ?, birth_day = ?, note = ?,
notify_days_before = ?, notify_enabled = ?, notify_sound = ?, updated_at = ?
WHERE id = ?`,
		strings.TrimSpace(e.Name), intArg(e.BirthYear), intArg(e.BirthMonth), intArg(e.BirthDay),
		e.Note, daysBeforeArg(e.DaysBefore), boolArg(e.NotifyEnabled), boolPtrArg(e.NotifySound),
		now.Format(timeFormat), e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity %d: %w", e.ID, ErrNotFound)
	}
	// Aliases are replaced wholesale on update.
	if _, err := tx.ExecContext(ctx, `DELETE FROM alias WHERE entity_id = ?`, e.ID); err != nil {
		return err
	}
	if err := insertAliases(ctx, tx, e.ID, e.Aliases, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

func insertAliases(ctx context.Context, tx *sql.Tx, entityID int64, aliases []birthday.Alias, now time.Time) error {
	for _, a := range aliases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alias (entity_id, name, created_at) VALUES (?, ?, ?)`,
			entityID, strings.TrimSpace(a.Name), now.Format(timeFormat)); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entity WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---- Settings ----

const (
	keyDefaultDaysBefore = "default_notify_days_before"
	keyDefaultSound      = "default_notify_sound"
	keyNotifyAt          = "notification_time"
	keyLanguage          = "language"
	keyStartOnLogin      = "start_on_login"
)

func (s *sqliteStore) Settings(ctx context.Context) (birthday.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM setting`)
	if err != nil {
		return birthday.Settings{}, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return birthday.Settings{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return birthday.Settings{}, err
	}

	settings := birthday.DefaultSettings()
	if len(values) == 0 {
		// First run: persist the defaults so external adapters see them.
		if err := s.SaveSettings(ctx, settings); err != nil {
			return birthday.Settings{}, err
		}
		return settings, nil
	}

	if v, ok := values[keyDefaultDaysBefore]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= birthday.MinDaysBefore && n <= birthday.MaxDaysBefore {
			settings.DefaultDaysBefore = n
		}
	}
	if v, ok := values[keyDefaultSound]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.DefaultSound = b
		}
	}
	if v, ok := values[keyNotifyAt]; ok && v != "" {
		settings.NotifyAt = v
	}
	if v, ok := values[keyLanguage]; ok && v != "" {
		settings.Language = v
	}
	if v, ok := values[keyStartOnLogin]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.StartOnLogin = b
		}
	}
	return settings, nil
}

func (s *sqliteStore) SaveSettings(ctx context.Context, settings birthday.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeFormat)
	pairs := []struct{ k, v string }{
		{keyDefaultDaysBefore, strconv.Itoa(settings.DefaultDaysBefore)},
		{keyDefaultSound, strconv.FormatBool(settings.DefaultSound)},
		{keyNotifyAt, settings.NotifyAt},
		{keyLanguage, settings.Language},
		{keyStartOnLogin, strconv.FormatBool(settings.StartOnLogin)},
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO setting (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			p.k, p.v, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---- Delivery ledger ----

func (s *sqliteStore) IsDelivered(ctx context.Context, entityID int64, dateKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM delivery WHERE entity_id = ? AND date_key = ?`,
		entityID, dateKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) RecordDelivered(ctx context.Context, entityID int64, dateKey string) error {
	// First writer wins; a repeat insert is a no-op, not an error.
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO delivery (entity_id, date_key, notified_at) VALUES (?, ?, ?)`,
		entityID, dateKey, time.Now().UTC().Format(timeFormat))
	return err
}

func (s *sqliteStore) PruneDeliveredBefore(ctx context.Context, cutoffKey string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM delivery WHERE date_key < ?`, cutoffKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- arg helpers ----

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolPtrArg(b *bool) any {
	if b == nil {
		return nil
	}
	return boolArg(*b)
}

func daysBeforeArg(d birthday.DaysBefore) any {
	v, valid := birthday.EncodeDaysBefore(d)
	if !valid {
		return nil
	}
	return v
}
