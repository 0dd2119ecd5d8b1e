// Package store owns the sqlite database shared by the approval queue and
// the audit log.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle and owns schema migration.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// Single-writer daemon; WAL keeps API readers from blocking the loop.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the handle to the queue and audit packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_actions (
			id          TEXT PRIMARY KEY,
			tool        TEXT NOT NULL,
			params      TEXT NOT NULL,
			reasoning   TEXT NOT NULL DEFAULT '',
			actor       TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			proposed_at INTEGER NOT NULL,
			resolved_at INTEGER,
			result      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_actions(status, proposed_at)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			at       INTEGER NOT NULL,
			actor    TEXT NOT NULL,
			event    TEXT NOT NULL,
			tool     TEXT NOT NULL DEFAULT '',
			detail   TEXT NOT NULL DEFAULT '',
			outcome  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
