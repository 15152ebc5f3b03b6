package store

import (
	"database/sql"
	"log"
	"strings"
)

// UpdateStatus is the outcome of an optimistic versioned update. A lost
// race is a normal return value, not an error: callers refetch and retry.
type UpdateStatus string

const (
	UpdateSuccess         UpdateStatus = "success"
	UpdateVersionMismatch UpdateStatus = "version-mismatch"
	UpdateNotFound        UpdateStatus = "not-found"
)

// UpdateResult carries the post-update version and value on success, or the
// row's actual current version and value on a mismatch so the caller can
// retry with fresh data.
type UpdateResult struct {
	Status  UpdateStatus
	Version int64
	Value   any
}

// versionedField names one (table, field, version counter) triple the
// compare-and-swap engine operates on.
type versionedField struct {
	table         string
	column        string
	versionColumn string
}

var (
	sessionMetadata    = versionedField{table: "sessions", column: "metadata", versionColumn: "metadata_version"}
	sessionAgentState  = versionedField{table: "sessions", column: "agent_state", versionColumn: "agent_state_version"}
	machineMetadata    = versionedField{table: "machines", column: "metadata", versionColumn: "metadata_version"}
	machineDaemonState = versionedField{table: "machines", column: "daemon_state", versionColumn: "daemon_state_version"}
)

// updateVersionedField performs the conditional write in a single UPDATE:
// the row must match id, namespace, and the expected version simultaneously,
// so there is no read-then-write window. extraSet clauses (updated_at touch,
// row seq bump) are applied atomically in the same statement; their
// placeholder args follow the field value.
//
// value is the decoded form of encoded and is echoed back on success.
// Storage faults degrade to UpdateNotFound: the engine reports "could not
// confirm" rather than propagating raw driver errors.
func (s *Store) updateVersionedField(
	f versionedField,
	id, namespace string,
	expectedVersion int64,
	encoded *string,
	value any,
	extraSet []string,
	extraArgs []any,
) UpdateResult {
	set := []string{
		f.column + " = ?",
		f.versionColumn + " = " + f.versionColumn + " + 1",
	}
	set = append(set, extraSet...)

	args := make([]any, 0, len(extraArgs)+4)
	args = append(args, nullableText(encoded))
	args = append(args, extraArgs...)
	args = append(args, id, namespace, expectedVersion)

	res, err := s.db.Exec(
		"UPDATE "+f.table+" SET "+strings.Join(set, ", ")+
			" WHERE id = ? AND namespace = ? AND "+f.versionColumn+" = ?",
		args...)
	if err != nil {
		log.Printf("store: versioned update on %s.%s failed: %v", f.table, f.column, err)
		return UpdateResult{Status: UpdateNotFound}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		log.Printf("store: versioned update on %s.%s failed: %v", f.table, f.column, err)
		return UpdateResult{Status: UpdateNotFound}
	}
	if affected == 1 {
		return UpdateResult{Status: UpdateSuccess, Version: expectedVersion + 1, Value: value}
	}

	// Zero rows matched: either the row is gone or someone else won the
	// race. Re-read to tell the two apart and hand back fresh state.
	var current sql.NullString
	var currentVersion int64
	err = s.db.QueryRow(
		"SELECT "+f.column+", "+f.versionColumn+" FROM "+f.table+" WHERE id = ? AND namespace = ?",
		id, namespace,
	).Scan(&current, &currentVersion)
	if err == sql.ErrNoRows {
		return UpdateResult{Status: UpdateNotFound}
	}
	if err != nil {
		log.Printf("store: versioned update re-read on %s.%s failed: %v", f.table, f.column, err)
		return UpdateResult{Status: UpdateNotFound}
	}

	return UpdateResult{Status: UpdateVersionMismatch, Version: currentVersion, Value: decodeJSON(current)}
}

func nullableText(text *string) any {
	if text == nil {
		return nil
	}
	return *text
}
