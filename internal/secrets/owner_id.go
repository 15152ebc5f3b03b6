package secrets

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
)

type ownerIDFile struct {
	OwnerID int64 `json:"ownerId"`
}

// OwnerID provisions the process's owner identifier lazily, exactly once.
// It is constructed by process setup and passed to whoever needs it, so
// tests can substitute their own instance instead of fighting a package
// global.
type OwnerID struct {
	dataDir string

	once  sync.Once
	value int64
	err   error
}

func NewOwnerID(dataDir string) *OwnerID {
	return &OwnerID{dataDir: dataDir}
}

// Get reads or generates the owner id. The first call does the file work;
// later calls return the cached result.
func (o *OwnerID) Get() (int64, error) {
	o.once.Do(func() {
		o.value, o.err = o.load()
	})
	return o.value, o.err
}

func (o *OwnerID) load() (int64, error) {
	path := filepath.Join(o.dataDir, "owner-id.json")

	result, err := GetOrCreateJSONFile(path,
		func(raw []byte) (int64, error) {
			var file ownerIDFile
			if err := json.Unmarshal(raw, &file); err != nil {
				return 0, err
			}
			if file.OwnerID <= 0 {
				return 0, fmt.Errorf("invalid ownerId %d", file.OwnerID)
			}
			return file.OwnerID, nil
		},
		func(id int64) ([]byte, error) {
			return json.MarshalIndent(ownerIDFile{OwnerID: id}, "", "  ")
		},
		generateOwnerID,
	)
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}

// generateOwnerID draws a positive 48-bit random identifier.
func generateOwnerID() (int64, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	var value int64
	for _, b := range buf {
		value = value<<8 | int64(b)
	}
	if value <= 0 {
		value = 1
	}
	return value, nil
}
