package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
)

const jwtSecretLen = 32

type jwtSecretFile struct {
	SecretBase64 string `json:"secretBase64"`
}

// JWTSecret returns the token-signing secret, generating and persisting 32
// random bytes on first boot.
func JWTSecret(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, "jwt-secret.json")

	result, err := GetOrCreateJSONFile(path,
		func(raw []byte) ([]byte, error) {
			var file jwtSecretFile
			if err := json.Unmarshal(raw, &file); err != nil {
				return nil, err
			}
			secret, err := base64.StdEncoding.DecodeString(file.SecretBase64)
			if err != nil {
				return nil, err
			}
			if len(secret) != jwtSecretLen {
				return nil, fmt.Errorf("invalid secret length %d", len(secret))
			}
			return secret, nil
		},
		func(secret []byte) ([]byte, error) {
			return json.MarshalIndent(jwtSecretFile{
				SecretBase64: base64.StdEncoding.EncodeToString(secret),
			}, "", "  ")
		},
		func() ([]byte, error) {
			secret := make([]byte, jwtSecretLen)
			if _, err := rand.Read(secret); err != nil {
				return nil, err
			}
			return secret, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}
