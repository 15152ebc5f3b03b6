package secrets

import (
	"fmt"
	"os"
)

// GetOrCreateResult reports whether the value was freshly generated, mostly
// so callers can log first-boot provisioning.
type GetOrCreateResult[T any] struct {
	Value   T
	Created bool
}

// GetOrCreateJSONFile reads a dedicated secret file, or generates the value
// and persists it when the file does not exist yet. Files are owner-only
// (0600 under a 0700 directory); an existing file has its mode re-asserted.
func GetOrCreateJSONFile[T any](
	path string,
	read func(raw []byte) (T, error),
	write func(value T) ([]byte, error),
	generate func() (T, error),
) (GetOrCreateResult[T], error) {
	var zero GetOrCreateResult[T]

	if raw, err := os.ReadFile(path); err == nil {
		_ = os.Chmod(path, 0o600)
		value, err := read(raw)
		if err != nil {
			return zero, fmt.Errorf("read %s: %w", path, err)
		}
		return GetOrCreateResult[T]{Value: value}, nil
	} else if !os.IsNotExist(err) {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}

	value, err := generate()
	if err != nil {
		return zero, fmt.Errorf("generate value for %s: %w", path, err)
	}
	data, err := write(value)
	if err != nil {
		return zero, fmt.Errorf("encode value for %s: %w", path, err)
	}
	if err := writeFileAtomic(path, data, 0o600, 0o700); err != nil {
		return zero, err
	}
	return GetOrCreateResult[T]{Value: value, Created: true}, nil
}

// GetOrCreateSettingsValue is the shared-document variant: read a value out
// of the settings file, or generate it, stash it, and persist the document.
func GetOrCreateSettingsValue[T any](
	dataDir string,
	read func(settings Settings) (T, bool),
	write func(settings *Settings, value T),
	generate func() (T, error),
) (GetOrCreateResult[T], error) {
	var zero GetOrCreateResult[T]

	path := settingsFile(dataDir)
	settings, err := readSettings(path)
	if err != nil {
		return zero, err
	}

	if value, ok := read(settings); ok {
		return GetOrCreateResult[T]{Value: value}, nil
	}

	value, err := generate()
	if err != nil {
		return zero, fmt.Errorf("generate settings value: %w", err)
	}
	write(&settings, value)
	if err := writeSettings(path, settings); err != nil {
		return zero, err
	}
	return GetOrCreateResult[T]{Value: value, Created: true}, nil
}
