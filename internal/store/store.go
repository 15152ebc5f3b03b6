// Package store is the persistence layer for sessions, machines, their
// per-session message logs, and the user / push-subscription registries.
// Everything lives in one SQLite file; all entities are scoped by a
// namespace key. Mutable session and machine state is guarded by per-field
// version counters (see versioned.go), the message log by a per-session
// strictly increasing seq.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the backing file, applies the connection PRAGMAs,
// and enforces the schema contract. Pass ":memory:" for tests.
//
// The pool is pinned to a single connection: SQLite has one writer anyway,
// a ":memory:" database only exists per connection, and a single connection
// makes each statement (including the message-seq subquery insert) a
// serialization point.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	if !isMemoryPath(path) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if err := os.Chmod(dir, 0o700); err != nil {
			return nil, fmt.Errorf("restrict data dir: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return nil, fmt.Errorf("create database file: %w", err)
			}
			_ = f.Close()
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
		}
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if !isMemoryPath(path) {
		// WAL creates companion files next to the database; keep them
		// owner-only too. Missing companions are fine.
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			_ = os.Chmod(p, 0o600)
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the backing file path ("" is normalized to ":memory:").
func (s *Store) Path() string {
	return s.path
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
