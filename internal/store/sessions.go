package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"happyd/internal/model"
)

const sessionColumns = `id, tag, namespace, machine_id, created_at, updated_at,
	metadata, metadata_version, agent_state, agent_state_version,
	todos, todos_updated_at, active, active_at, seq`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var (
		sess      model.Session
		tag       sql.NullString
		machineID sql.NullString
		metadata  sql.NullString
		agent     sql.NullString
		todos     sql.NullString
		todosAt   sql.NullInt64
		active    int64
		activeAt  sql.NullInt64
	)
	err := row.Scan(
		&sess.ID, &tag, &sess.Namespace, &machineID, &sess.CreatedAt, &sess.UpdatedAt,
		&metadata, &sess.MetadataVersion, &agent, &sess.AgentStateVersion,
		&todos, &todosAt, &active, &activeAt, &sess.Seq,
	)
	if err != nil {
		return model.Session{}, err
	}

	sess.Tag = tag.String
	if machineID.Valid {
		sess.MachineID = &machineID.String
	}
	sess.Metadata = decodeJSON(metadata)
	sess.AgentState = decodeJSON(agent)
	sess.Todos = decodeJSON(todos)
	if todosAt.Valid {
		sess.TodosUpdatedAt = &todosAt.Int64
	}
	sess.Active = active == 1
	if activeAt.Valid {
		sess.ActiveAt = &activeAt.Int64
	}
	return sess, nil
}

// GetOrCreateSession returns the most recently created session with the
// given tag in the namespace, or inserts a fresh one. On a hit the metadata
// and agentState arguments are ignored; the call is an idempotent read.
//
// Two concurrent misses may both insert. That is accepted: tags are not
// unique, and the next lookup deterministically takes the newest row.
func (s *Store) GetOrCreateSession(tag string, metadata, agentState any, namespace string) (model.Session, error) {
	row := s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE tag = ? AND namespace = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		tag, namespace)
	existing, err := scanSession(row)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return model.Session{}, fmt.Errorf("lookup session by tag: %w", err)
	}

	metadataText, err := encodeJSONNonNull(metadata)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode session metadata: %w", err)
	}
	agentText, err := encodeJSON(agentState)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode session agent state: %w", err)
	}

	now := nowMillis()
	id := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO sessions (
			id, tag, namespace, machine_id, created_at, updated_at,
			metadata, metadata_version,
			agent_state, agent_state_version,
			todos, todos_updated_at,
			active, active_at, seq
		) VALUES (?, ?, ?, NULL, ?, ?, ?, 1, ?, 1, NULL, NULL, 0, NULL, 0)`,
		id, tag, namespace, now, now, metadataText, nullableText(agentText))
	if err != nil {
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}

	created, err := s.GetSession(id)
	if err != nil {
		return model.Session{}, err
	}
	if created == nil {
		return model.Session{}, fmt.Errorf("session %s vanished after insert", id)
	}
	return *created, nil
}

// UpdateSessionMetadata is a versioned update on the metadata field. The
// row seq always bumps; updated_at is touched unless touchUpdatedAt is
// false (bulk imports replaying history want the listing order untouched).
func (s *Store) UpdateSessionMetadata(id string, metadata any, expectedVersion int64, namespace string, touchUpdatedAt bool) UpdateResult {
	encoded, err := encodeJSONNonNull(metadata)
	if err != nil {
		return UpdateResult{Status: UpdateNotFound}
	}

	touch := int64(0)
	if touchUpdatedAt {
		touch = 1
	}
	return s.updateVersionedField(
		sessionMetadata, id, namespace, expectedVersion, &encoded, metadata,
		[]string{
			"updated_at = CASE WHEN ? = 1 THEN ? ELSE updated_at END",
			"seq = seq + 1",
		},
		[]any{touch, nowMillis()},
	)
}

// UpdateSessionAgentState is a versioned update on the agent_state field;
// nil state is normalized to a stored NULL and updated_at always moves.
func (s *Store) UpdateSessionAgentState(id string, agentState any, expectedVersion int64, namespace string) UpdateResult {
	encoded, err := encodeJSON(agentState)
	if err != nil {
		return UpdateResult{Status: UpdateNotFound}
	}

	return s.updateVersionedField(
		sessionAgentState, id, namespace, expectedVersion, encoded, agentState,
		[]string{"updated_at = ?", "seq = seq + 1"},
		[]any{nowMillis()},
	)
}

// SetSessionTodos is deliberately not versioned. Todos are high-frequency
// last-writer-wins state ordered by the todosUpdatedAt watermark: the write
// applies only when the stored watermark is absent or strictly older, and a
// stale write is silently dropped (returns false). updated_at never moves
// backwards; seq bumps only when the write lands.
func (s *Store) SetSessionTodos(id string, todos any, todosUpdatedAt int64, namespace string) bool {
	encoded, err := encodeJSON(todos)
	if err != nil {
		return false
	}

	res, err := s.db.Exec(`
		UPDATE sessions
		SET todos = ?,
		    todos_updated_at = ?,
		    updated_at = CASE WHEN updated_at > ? THEN updated_at ELSE ? END,
		    seq = seq + 1
		WHERE id = ?
		  AND namespace = ?
		  AND (todos_updated_at IS NULL OR todos_updated_at < ?)`,
		nullableText(encoded), todosUpdatedAt, todosUpdatedAt, todosUpdatedAt,
		id, namespace, todosUpdatedAt)
	if err != nil {
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return affected == 1
}

// GetSession looks up a session by id across all namespaces. Returns nil
// when absent.
func (s *Store) GetSession(id string) (*model.Session, error) {
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// GetSessionByNamespace is the tenant-checked point lookup.
func (s *Store) GetSessionByNamespace(id, namespace string) (*model.Session, error) {
	row := s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ? AND namespace = ?", id, namespace)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *Store) GetSessions() ([]model.Session, error) {
	return s.querySessions("SELECT " + sessionColumns + " FROM sessions ORDER BY updated_at DESC")
}

func (s *Store) GetSessionsByNamespace(namespace string) ([]model.Session, error) {
	return s.querySessions(
		"SELECT "+sessionColumns+" FROM sessions WHERE namespace = ? ORDER BY updated_at DESC",
		namespace)
}

func (s *Store) querySessions(query string, args ...any) ([]model.Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	result := make([]model.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		result = append(result, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return result, nil
}

// DeleteSession removes the session only within the given namespace and
// reports whether a row went away. Messages cascade via the foreign key.
func (s *Store) DeleteSession(id, namespace string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ? AND namespace = ?", id, namespace)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return affected > 0, nil
}
