package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestJWTSecret_GenerateThenRead(t *testing.T) {
	dataDir := t.TempDir()

	first, err := JWTSecret(dataDir)
	if err != nil {
		t.Fatalf("JWTSecret: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 byte secret, got %d", len(first))
	}

	second, err := JWTSecret(dataDir)
	if err != nil {
		t.Fatalf("JWTSecret reread: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second call must read, not regenerate")
	}

	info, err := os.Stat(filepath.Join(dataDir, "jwt-secret.json"))
	if err != nil {
		t.Fatalf("stat secret file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 secret file, got %o", perm)
	}
}

func TestJWTSecret_RejectsTamperedFile(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "jwt-secret.json")
	if err := os.WriteFile(path, []byte(`{"secretBase64":"c2hvcnQ="}`), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := JWTSecret(dataDir); err == nil {
		t.Fatalf("expected error for wrong-length secret")
	}
}

func TestOwnerID_LazyOnce(t *testing.T) {
	dataDir := t.TempDir()

	owner := NewOwnerID(dataDir)
	first, err := owner.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first <= 0 {
		t.Fatalf("owner id must be positive, got %d", first)
	}

	// Removing the file after first load must not matter: the value is
	// cached in the instance.
	if err := os.Remove(filepath.Join(dataDir, "owner-id.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := owner.Get()
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if second != first {
		t.Fatalf("expected cached id %d, got %d", first, second)
	}

	// A fresh instance over the same (now empty) directory generates anew.
	other, err := NewOwnerID(dataDir).Get()
	if err != nil {
		t.Fatalf("fresh Get: %v", err)
	}
	if other <= 0 {
		t.Fatalf("fresh owner id must be positive")
	}
}

func TestVAPIDKeys_PersistInSettings(t *testing.T) {
	dataDir := t.TempDir()

	first, err := GetOrCreateVAPIDKeys(dataDir)
	if err != nil {
		t.Fatalf("GetOrCreateVAPIDKeys: %v", err)
	}
	if first.PublicKey == "" || first.PrivateKey == "" {
		t.Fatalf("expected generated keypair, got %+v", first)
	}

	second, err := GetOrCreateVAPIDKeys(dataDir)
	if err != nil {
		t.Fatalf("GetOrCreateVAPIDKeys reread: %v", err)
	}
	if second != first {
		t.Fatalf("second call must return the persisted keypair")
	}

	info, err := os.Stat(settingsFile(dataDir))
	if err != nil {
		t.Fatalf("stat settings: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 settings file, got %o", perm)
	}
}

func TestWriteSettings_ReplacesAtomically(t *testing.T) {
	dataDir := t.TempDir()
	path := settingsFile(dataDir)

	if err := writeSettings(path, Settings{}); err != nil {
		t.Fatalf("writeSettings: %v", err)
	}
	keys := VAPIDKeys{PublicKey: "pub", PrivateKey: "priv"}
	if err := writeSettings(path, Settings{VAPIDKeys: &keys}); err != nil {
		t.Fatalf("writeSettings overwrite: %v", err)
	}

	settings, err := readSettings(path)
	if err != nil {
		t.Fatalf("readSettings: %v", err)
	}
	if settings.VAPIDKeys == nil || settings.VAPIDKeys.PublicKey != "pub" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	// No leftover temp files.
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only settings.json, got %d entries", len(entries))
	}
}
