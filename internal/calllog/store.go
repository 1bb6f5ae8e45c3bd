// Package calllog is the durable, ordered record of reducer calls: the
// module-side analogue of the host's commit log. Appending is the hot
// path; reads always come back in seq order so replay is deterministic.
package calllog

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Call statuses. A committed call's mutations stuck; a failed call was
// rolled back but is still part of the history.
const (
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// Entry is one recorded reducer call.
type Entry struct {
	Seq             int64
	Reducer         string
	Args            []byte
	Sender          string
	Connection      string
	TimestampMicros int64
	Status          string
	Error           string
}

// Store is a SQLite-backed call log. WAL mode allows reads while a
// call is being appended; writes go through a single connection since
// SQLite has one writer anyway.
type Store struct {
	db *sql.DB
}

// Open creates or opens the log at path. Idempotent: pragmas and
// schema are applied on every open.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect call log: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
