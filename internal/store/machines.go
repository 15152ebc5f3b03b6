package store

import (
	"database/sql"
	"fmt"

	"happyd/internal/model"
)

const machineColumns = `id, namespace, created_at, updated_at,
	metadata, metadata_version, daemon_state, daemon_state_version,
	active, active_at, seq`

func scanMachine(row rowScanner) (model.Machine, error) {
	var (
		m        model.Machine
		metadata sql.NullString
		daemon   sql.NullString
		active   int64
		activeAt sql.NullInt64
	)
	err := row.Scan(
		&m.ID, &m.Namespace, &m.CreatedAt, &m.UpdatedAt,
		&metadata, &m.MetadataVersion, &daemon, &m.DaemonStateVersion,
		&active, &activeAt, &m.Seq,
	)
	if err != nil {
		return model.Machine{}, err
	}

	m.Metadata = decodeJSON(metadata)
	m.DaemonState = decodeJSON(daemon)
	m.Active = active == 1
	if activeAt.Valid {
		m.ActiveAt = &activeAt.Int64
	}
	return m, nil
}

// GetOrCreateMachine is keyed by the caller-supplied machine id (daemons
// know their own identity; nothing is generated). An existing row is
// returned as-is, arguments ignored.
func (s *Store) GetOrCreateMachine(id string, metadata, daemonState any, namespace string) (model.Machine, error) {
	existing, err := s.GetMachineByNamespace(id, namespace)
	if err != nil {
		return model.Machine{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	metadataText, err := encodeJSONNonNull(metadata)
	if err != nil {
		return model.Machine{}, fmt.Errorf("encode machine metadata: %w", err)
	}
	daemonText, err := encodeJSON(daemonState)
	if err != nil {
		return model.Machine{}, fmt.Errorf("encode machine daemon state: %w", err)
	}

	now := nowMillis()
	_, err = s.db.Exec(`
		INSERT INTO machines (
			id, namespace, created_at, updated_at,
			metadata, metadata_version,
			daemon_state, daemon_state_version,
			active, active_at, seq
		) VALUES (?, ?, ?, ?, ?, 1, ?, 1, 0, NULL, 0)`,
		id, namespace, now, now, metadataText, nullableText(daemonText))
	if err != nil {
		return model.Machine{}, fmt.Errorf("insert machine: %w", err)
	}

	created, err := s.GetMachineByNamespace(id, namespace)
	if err != nil {
		return model.Machine{}, err
	}
	if created == nil {
		return model.Machine{}, fmt.Errorf("machine %s vanished after insert", id)
	}
	return *created, nil
}

func (s *Store) UpdateMachineMetadata(id string, metadata any, expectedVersion int64, namespace string) UpdateResult {
	encoded, err := encodeJSONNonNull(metadata)
	if err != nil {
		return UpdateResult{Status: UpdateNotFound}
	}

	return s.updateVersionedField(
		machineMetadata, id, namespace, expectedVersion, &encoded, metadata,
		[]string{"updated_at = ?", "seq = seq + 1"},
		[]any{nowMillis()},
	)
}

func (s *Store) UpdateMachineDaemonState(id string, daemonState any, expectedVersion int64, namespace string) UpdateResult {
	encoded, err := encodeJSON(daemonState)
	if err != nil {
		return UpdateResult{Status: UpdateNotFound}
	}

	return s.updateVersionedField(
		machineDaemonState, id, namespace, expectedVersion, encoded, daemonState,
		[]string{"updated_at = ?", "seq = seq + 1"},
		[]any{nowMillis()},
	)
}

func (s *Store) GetMachine(id string) (*model.Machine, error) {
	row := s.db.QueryRow("SELECT "+machineColumns+" FROM machines WHERE id = ?", id)
	m, err := scanMachine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return &m, nil
}

func (s *Store) GetMachineByNamespace(id, namespace string) (*model.Machine, error) {
	row := s.db.QueryRow(
		"SELECT "+machineColumns+" FROM machines WHERE id = ? AND namespace = ?", id, namespace)
	m, err := scanMachine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return &m, nil
}

func (s *Store) GetMachines() ([]model.Machine, error) {
	return s.queryMachines("SELECT " + machineColumns + " FROM machines ORDER BY updated_at DESC")
}

func (s *Store) GetMachinesByNamespace(namespace string) ([]model.Machine, error) {
	return s.queryMachines(
		"SELECT "+machineColumns+" FROM machines WHERE namespace = ? ORDER BY updated_at DESC",
		namespace)
}

func (s *Store) queryMachines(query string, args ...any) ([]model.Machine, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	result := make([]model.Machine, 0)
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("list machines: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	return result, nil
}
