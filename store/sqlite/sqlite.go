/*
Package sqlite provides a SQLite-backed implementation of commission.Store.

PURPOSE:
  Persists the commission record sets between runs. Records are kept as JSON
  documents next to the few columns the store itself needs (keys, join
  keys); the engine never queries by anything else.

KEY TABLES:
  fgs:         Imported FGs in import order (rowid), join_key indexed
  prepayments: Imported prepayments in import order
  managers:    Manager records with embedded personal rules
  rules:       Group rules
  milestones:  Milestones
  settings:    Single-row key/value documents

ORDERING:
  Every list query orders by rowid. Upserts keep the original rowid, so
  editing a record does not move it.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Imports replace a whole collection
  inside one SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := commission.NewService(store, nil, logger)

SEE ALSO:
  - commission/store.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// Store implements commission.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ commission.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fgs (
		number TEXT NOT NULL,
		join_key TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fgs_join_key ON fgs(join_key);

	CREATE TABLE IF NOT EXISTS prepayments (
		fg_number TEXT NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS managers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		data_json TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FG STORE
// =============================================================================

func (s *Store) ListFGs(ctx context.Context) ([]commission.FG, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[commission.FG](ctx, s.db, "SELECT data_json FROM fgs ORDER BY rowid")
}

// GetFG returns the first FG (import order) whose number loosely equals number.
func (s *Store) GetFG(ctx context.Context, number string) (commission.FG, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fg commission.FG
	err := getDoc(ctx, s.db, &fg,
		"SELECT data_json FROM fgs WHERE join_key = ? ORDER BY rowid LIMIT 1",
		generic.JoinKey(number),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return commission.FG{}, fmt.Errorf("fg %s: %w", number, generic.ErrNotFound)
	}
	return fg, err
}

// ReplaceFGs deletes every FG and inserts fgs, atomically.
func (s *Store) ReplaceFGs(ctx context.Context, fgs []commission.FG) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fgs"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO fgs (number, join_key, data_json) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, fg := range fgs {
			data, err := json.Marshal(fg)
			if err != nil {
				return fmt.Errorf("failed to marshal fg %s: %w", fg.Number, err)
			}
			if _, err := stmt.ExecContext(ctx, fg.Number, generic.JoinKey(fg.Number), string(data)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveFGs updates the first FG matching each record's number.
func (s *Store) SaveFGs(ctx context.Context, fgs []commission.FG) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, fg := range fgs {
			data, err := json.Marshal(fg)
			if err != nil {
				return fmt.Errorf("failed to marshal fg %s: %w", fg.Number, err)
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE fgs SET data_json = ?
				WHERE rowid = (SELECT rowid FROM fgs WHERE join_key = ? ORDER BY rowid LIMIT 1)`,
				string(data), generic.JoinKey(fg.Number),
			)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("fg %s: %w", fg.Number, generic.ErrNotFound)
			}
		}
		return nil
	})
}

// =============================================================================
// PREPAYMENT STORE
// =============================================================================

func (s *Store) ListPrepayments(ctx context.Context) ([]commission.Prepayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[commission.Prepayment](ctx, s.db, "SELECT data_json FROM prepayments ORDER BY rowid")
}

// ReplacePrepayments deletes every prepayment and inserts pps, atomically.
func (s *Store) ReplacePrepayments(ctx context.Context, pps []commission.Prepayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM prepayments"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO prepayments (fg_number, data_json) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range pps {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal prepayment: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, p.FGNumber, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// MANAGER STORE
// =============================================================================

func (s *Store) ListManagers(ctx context.Context) ([]commission.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[commission.Manager](ctx, s.db, "SELECT data_json FROM managers ORDER BY rowid")
}

func (s *Store) GetManager(ctx context.Context, id commission.ManagerID) (commission.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m commission.Manager
	err := getDoc(ctx, s.db, &m, "SELECT data_json FROM managers WHERE id = ?", string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return commission.Manager{}, fmt.Errorf("manager %s: %w", id, generic.ErrNotFound)
	}
	return m, err
}

func (s *Store) SaveManager(ctx context.Context, m commission.Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manager %s: %w", m.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO managers (id, name, type, data_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			data_json = excluded.data_json,
			updated_at = datetime('now')`,
		string(m.ID), m.Name, string(m.Type), string(data),
	)
	return err
}

func (s *Store) DeleteManager(ctx context.Context, id commission.ManagerID) error {
	return s.deleteByID(ctx, "managers", "manager", string(id))
}

// =============================================================================
// RULE STORE
// =============================================================================

func (s *Store) ListRules(ctx context.Context) ([]commission.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[commission.Rule](ctx, s.db, "SELECT data_json FROM rules ORDER BY rowid")
}

func (s *Store) SaveRule(ctx context.Context, r commission.Rule) error {
	return s.upsertNamed(ctx, "rules", string(r.ID), r.Name, r)
}

func (s *Store) DeleteRule(ctx context.Context, id commission.RuleID) error {
	return s.deleteByID(ctx, "rules", "rule", string(id))
}

// =============================================================================
// MILESTONE STORE
// =============================================================================

func (s *Store) ListMilestones(ctx context.Context) ([]commission.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[commission.Milestone](ctx, s.db, "SELECT data_json FROM milestones ORDER BY rowid")
}

func (s *Store) SaveMilestone(ctx context.Context, m commission.Milestone) error {
	return s.upsertNamed(ctx, "milestones", string(m.ID), m.Name, m)
}

func (s *Store) DeleteMilestone(ctx context.Context, id commission.MilestoneID) error {
	return s.deleteByID(ctx, "milestones", "milestone", string(id))
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

const settingsKey = "settings"

func (s *Store) GetSettings(ctx context.Context) (commission.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var settings commission.Settings
	err := getDoc(ctx, s.db, &settings, "SELECT data_json FROM settings WHERE key = ?", settingsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return commission.DefaultSettings(), nil
	}
	return settings, err
}

func (s *Store) SaveSettings(ctx context.Context, settings commission.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, data_json) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data_json = excluded.data_json`,
		settingsKey, string(data),
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		tables := []string{"fgs", "prepayments", "managers", "rules", "milestones", "settings"}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// upsertNamed stores a document in an (id, name, data_json) table.
func (s *Store) upsertNamed(ctx context.Context, table, id, name string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", table, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, name, data_json)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data_json = excluded.data_json,
			updated_at = datetime('now')`,
		id, name, string(data),
	)
	return err
}

func (s *Store) deleteByID(ctx context.Context, table, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, generic.ErrNotFound)
	}
	return nil
}

func getDoc(ctx context.Context, db *sql.DB, dst any, query string, args ...any) error {
	var data string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dst)
}

func queryDocs[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
