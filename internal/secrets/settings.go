// Package secrets provisions the filesystem-backed secret material the
// server needs on first boot: the token-signing secret, the owner id, and
// the web-push keypair. Everything follows one read-or-generate-and-persist
// pattern; none of it carries concurrency or consistency logic beyond
// atomic file replacement.
package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the shared settings document. Single-purpose secrets get
// their own file; smaller values share this one.
type Settings struct {
	VAPIDKeys *VAPIDKeys `json:"vapidKeys,omitempty"`
}

func settingsFile(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

func readSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if len(data) == 0 {
		return Settings{}, nil
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

func writeSettings(path string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	return writeFileAtomic(path, data, 0o600, 0o700)
}

// writeFileAtomic writes via a temp file in the target directory and
// renames it into place, so readers never observe a torn file.
func writeFileAtomic(path string, data []byte, fileMode, dirMode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
