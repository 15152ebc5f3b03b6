package store

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SessionGetOrCreate(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.GetOrCreateSession("tag1", map[string]any{"name": "one"}, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	if sess.Tag != "tag1" || sess.Namespace != "ns1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.MetadataVersion != 1 || sess.AgentStateVersion != 1 || sess.Seq != 0 {
		t.Fatalf("fresh session counters wrong: %+v", sess)
	}
	if sess.Active {
		t.Fatalf("fresh session should be inactive")
	}

	// Hit path: arguments are ignored, the stored row comes back unchanged.
	again, err := s.GetOrCreateSession("tag1", map[string]any{"name": "other"}, map[string]any{"x": 1}, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession again: %v", err)
	}
	if again.ID != sess.ID {
		t.Fatalf("expected same session, got %s and %s", sess.ID, again.ID)
	}
	meta, ok := again.Metadata.(map[string]any)
	if !ok || meta["name"] != "one" {
		t.Fatalf("hit path must not replace metadata, got %+v", again.Metadata)
	}

	// Same tag in another namespace is a different session.
	other, err := s.GetOrCreateSession("tag1", nil, nil, "ns2")
	if err != nil {
		t.Fatalf("GetOrCreateSession ns2: %v", err)
	}
	if other.ID == sess.ID {
		t.Fatalf("namespaces must not share sessions")
	}
}

func TestStore_SessionLookups(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.GetOrCreateSession("tag1", nil, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("expected session by id")
	}

	got, err = s.GetSessionByNamespace(sess.ID, "ns2")
	if err != nil {
		t.Fatalf("GetSessionByNamespace: %v", err)
	}
	if got != nil {
		t.Fatalf("tenant check must hide foreign sessions")
	}

	missing, err := s.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id")
	}

	list, err := s.GetSessionsByNamespace("ns1")
	if err != nil {
		t.Fatalf("GetSessionsByNamespace: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
}

func TestStore_DeleteSessionScopedByNamespace(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.GetOrCreateSession("tag1", nil, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	removed, err := s.DeleteSession(sess.ID, "ns2")
	if err != nil {
		t.Fatalf("DeleteSession wrong ns: %v", err)
	}
	if removed {
		t.Fatalf("delete must not cross namespaces")
	}

	removed, err = s.DeleteSession(sess.ID, "ns1")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if !removed {
		t.Fatalf("expected delete to remove the session")
	}

	removed, err = s.DeleteSession(sess.ID, "ns1")
	if err != nil {
		t.Fatalf("DeleteSession repeat: %v", err)
	}
	if removed {
		t.Fatalf("second delete should be a no-op")
	}
}

func TestStore_MachineGetOrCreate(t *testing.T) {
	s := newTestStore(t)

	m, err := s.GetOrCreateMachine("mach-1", map[string]any{"host": "a"}, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateMachine: %v", err)
	}
	if m.ID != "mach-1" || m.MetadataVersion != 1 || m.DaemonStateVersion != 1 || m.Seq != 0 {
		t.Fatalf("unexpected machine %+v", m)
	}

	again, err := s.GetOrCreateMachine("mach-1", map[string]any{"host": "b"}, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateMachine again: %v", err)
	}
	meta, ok := again.Metadata.(map[string]any)
	if !ok || meta["host"] != "a" {
		t.Fatalf("hit path must not replace metadata, got %+v", again.Metadata)
	}

	got, err := s.GetMachineByNamespace("mach-1", "ns2")
	if err != nil {
		t.Fatalf("GetMachineByNamespace: %v", err)
	}
	if got != nil {
		t.Fatalf("tenant check must hide foreign machines")
	}

	list, err := s.GetMachinesByNamespace("ns1")
	if err != nil {
		t.Fatalf("GetMachinesByNamespace: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 machine, got %d", len(list))
	}
}

func TestStore_CorruptStoredValueReadsAsNil(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.GetOrCreateSession("tag1", map[string]any{"ok": true}, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	if _, err := s.db.Exec("UPDATE sessions SET metadata = ? WHERE id = ?", "{not json", sess.ID); err != nil {
		t.Fatalf("corrupt metadata: %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatalf("row must stay readable")
	}
	if got.Metadata != nil {
		t.Fatalf("corrupt metadata should decode to nil, got %+v", got.Metadata)
	}
	if got.MetadataVersion != 1 {
		t.Fatalf("rest of the row must survive, got version %d", got.MetadataVersion)
	}
}
