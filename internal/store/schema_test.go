package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data", "happy.db")
}

func TestOpen_FreshFileStampsSchemaVersion(t *testing.T) {
	path := testDBPath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	version, err := s.userVersion()
	if err != nil {
		t.Fatalf("userVersion: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("expected stamp %d, got %d", schemaVersion, version)
	}
	_ = s.Close()

	// Reopen is a clean no-op.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s.Close()
}

func TestOpen_FutureSchemaVersionFailsFast(t *testing.T) {
	path := testDBPath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("stamp future version: %v", err)
	}
	_ = db.Close()

	_, err = Open(path)
	if err == nil {
		t.Fatalf("expected open to fail on a future schema version")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if schemaErr.Found != 99 {
		t.Fatalf("expected found version 99, got %d", schemaErr.Found)
	}
	if !strings.Contains(err.Error(), "back up") {
		t.Fatalf("error must carry operator guidance, got %q", err.Error())
	}
}

func TestOpen_StampedFileMissingTablesFailsFast(t *testing.T) {
	path := testDBPath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := db.Exec("DROP TABLE machines"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_ = db.Close()

	_, err = Open(path)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "machines" {
		t.Fatalf("expected missing [machines], got %v", schemaErr.Missing)
	}
}

func TestOpen_LegacyUnversionedFileIsStampedNotRebuilt(t *testing.T) {
	path := testDBPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// A pre-versioning file: application tables exist, user_version is 0.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO sessions (id, namespace, created_at, updated_at, metadata) VALUES ('legacy', 'ns1', 1, 1, 'null')"); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open legacy file: %v", err)
	}
	defer s.Close()

	version, err := s.userVersion()
	if err != nil {
		t.Fatalf("userVersion: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("legacy file must be stamped, got %d", version)
	}

	sess, err := s.GetSession("legacy")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess == nil {
		t.Fatalf("legacy data must survive the stamp")
	}
}

func TestOpen_RestrictsFilePermissions(t *testing.T) {
	path := testDBPath(t)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat db: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected db file 0600, got %o", perm)
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Fatalf("expected data dir 0700, got %o", perm)
	}
}
