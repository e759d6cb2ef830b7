// Package rulecache provides the durable last-good snapshot the Rules
// Repository and Config Store fall back to after a catastrophic parse
// failure with no in-process prior success (spec.md §4.A/§4.F). It is a
// single embedded SQLite table pair, not a general-purpose datastore: one
// row per snapshot, overwritten on every successful load.
package rulecache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/rules"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Store is a goose-migrated SQLite database holding the ruleset and config
// last-good snapshots. It satisfies both rules.Cache and the Config Store's
// equivalent snapshot interface.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and applies
// any pending migrations. Grounded on the teacher's MigrationManager.Up
// shape (internal/infrastructure/migrations/manager.go), trimmed to the one
// operation this system needs at startup: apply everything, then serve.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening rule cache database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging rule cache database: %w", err)
	}

	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying rule cache migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRuleset persists rules as the last-good ruleset snapshot, satisfying
// rules.Cache.
func (s *Store) SaveRuleset(ruleSet []domain.Rule) error {
	data, err := rules.MarshalRules(ruleSet)
	if err != nil {
		return fmt.Errorf("marshaling ruleset snapshot: %w", err)
	}
	return s.upsert(context.Background(), "ruleset_snapshot", data)
}

// LoadRuleset returns the last persisted ruleset snapshot, satisfying
// rules.Cache. ok is false if no snapshot has ever been saved.
func (s *Store) LoadRuleset() ([]domain.Rule, bool, error) {
	data, ok, err := s.load(context.Background(), "ruleset_snapshot")
	if err != nil || !ok {
		return nil, ok, err
	}
	ruleSet, err := rules.UnmarshalRules(data)
	if err != nil {
		return nil, false, fmt.Errorf("unmarshaling cached ruleset: %w", err)
	}
	return ruleSet, true, nil
}

// SaveConfigSnapshot persists the given raw config document as the last-good
// config snapshot, for the Config Store's own durable-cache fallback.
func (s *Store) SaveConfigSnapshot(data []byte) error {
	return s.upsert(context.Background(), "config_snapshot", data)
}

// LoadConfigSnapshot returns the last persisted raw config document.
func (s *Store) LoadConfigSnapshot() ([]byte, bool, error) {
	return s.load(context.Background(), "config_snapshot")
}

func (s *Store) upsert(ctx context.Context, table string, data []byte) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		table,
	)
	_, err := s.db.ExecContext(ctx, query, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persisting snapshot to %s: %w", table, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, table string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = 1`, table)
	var data string
	err := s.db.QueryRowContext(ctx, query).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot from %s: %w", table, err)
	}
	return []byte(data), true, nil
}
