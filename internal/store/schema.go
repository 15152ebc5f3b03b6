package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// schemaVersion is the contract stamped into PRAGMA user_version. There are
// no compatibility migrations: a file stamped with anything else is rejected
// at open.
const schemaVersion = 1

var requiredTables = []string{
	"sessions",
	"machines",
	"messages",
	"users",
	"push_subscriptions",
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    tag TEXT,
    namespace TEXT NOT NULL DEFAULT 'default',
    machine_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    metadata TEXT,
    metadata_version INTEGER DEFAULT 1,
    agent_state TEXT,
    agent_state_version INTEGER DEFAULT 1,
    todos TEXT,
    todos_updated_at INTEGER,
    active INTEGER DEFAULT 0,
    active_at INTEGER,
    seq INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_tag ON sessions(tag);
CREATE INDEX IF NOT EXISTS idx_sessions_tag_namespace ON sessions(tag, namespace);

CREATE TABLE IF NOT EXISTS machines (
    id TEXT PRIMARY KEY,
    namespace TEXT NOT NULL DEFAULT 'default',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    metadata TEXT,
    metadata_version INTEGER DEFAULT 1,
    daemon_state TEXT,
    daemon_state_version INTEGER DEFAULT 1,
    active INTEGER DEFAULT 0,
    active_at INTEGER,
    seq INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_machines_namespace ON machines(namespace);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    local_id TEXT,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_local_id ON messages(session_id, local_id) WHERE local_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    platform TEXT NOT NULL,
    platform_user_id TEXT NOT NULL,
    namespace TEXT NOT NULL DEFAULT 'default',
    created_at INTEGER NOT NULL,
    UNIQUE(platform, platform_user_id)
);
CREATE INDEX IF NOT EXISTS idx_users_platform ON users(platform);
CREATE INDEX IF NOT EXISTS idx_users_platform_namespace ON users(platform, namespace);

CREATE TABLE IF NOT EXISTS push_subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    namespace TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    p256dh TEXT NOT NULL,
    auth TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE(namespace, endpoint)
);
CREATE INDEX IF NOT EXISTS idx_push_subscriptions_namespace ON push_subscriptions(namespace);
`

// SchemaError is a fatal open-time failure. It is never produced by entity
// operations; once Open succeeds the schema is settled.
type SchemaError struct {
	Path    string
	Found   int
	Missing []string
}

func (e *SchemaError) Error() string {
	location := e.Path
	if isMemoryPath(e.Path) {
		location = "in-memory database"
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf(
			"sqlite schema for %s is missing required tables (%s); back up and rebuild the database, or run an offline migration to schema version %d",
			location, strings.Join(e.Missing, ", "), schemaVersion)
	}
	return fmt.Sprintf(
		"sqlite schema version mismatch for %s: expected %d, found %d; this build does not run compatibility migrations, back up and rebuild the database",
		location, schemaVersion, e.Found)
}

func (s *Store) initSchema() error {
	current, err := s.userVersion()
	if err != nil {
		return err
	}

	if current == 0 {
		hasTables, err := s.hasAnyUserTables()
		if err != nil {
			return err
		}
		if hasTables {
			// Legacy unversioned file: stamp and hope, do not touch data.
			return s.setUserVersion(schemaVersion)
		}
		if _, err := s.db.Exec(schemaDDL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return s.setUserVersion(schemaVersion)
	}

	if current != schemaVersion {
		return &SchemaError{Path: s.path, Found: current}
	}
	return s.assertRequiredTables()
}

func (s *Store) userVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func (s *Store) setUserVersion(version int) error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("stamp user_version: %w", err)
	}
	return nil
}

func (s *Store) hasAnyUserTables() (bool, error) {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' LIMIT 1",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) assertRequiredTables() error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(requiredTables)), ", ")
	args := make([]any, len(requiredTables))
	for i, table := range requiredTables {
		args[i] = table
	}

	rows, err := s.db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ("+placeholders+")", args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	existing := make(map[string]bool, len(requiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, table := range requiredTables {
		if !existing[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Path: s.path, Found: schemaVersion, Missing: missing}
	}
	return nil
}
