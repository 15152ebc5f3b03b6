package secrets

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
)

// VAPIDKeys is a P-256 keypair for web-push voluntary application server
// identification, in the base64url encoding push services expect: the
// public key is the uncompressed point, the private key the raw scalar.
type VAPIDKeys struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// GetOrCreateVAPIDKeys reads the keypair from the shared settings document,
// generating one on first boot.
func GetOrCreateVAPIDKeys(dataDir string) (VAPIDKeys, error) {
	result, err := GetOrCreateSettingsValue(dataDir,
		func(settings Settings) (VAPIDKeys, bool) {
			if settings.VAPIDKeys != nil &&
				settings.VAPIDKeys.PublicKey != "" &&
				settings.VAPIDKeys.PrivateKey != "" {
				return *settings.VAPIDKeys, true
			}
			return VAPIDKeys{}, false
		},
		func(settings *Settings, keys VAPIDKeys) {
			settings.VAPIDKeys = &keys
		},
		generateVAPIDKeys,
	)
	if err != nil {
		return VAPIDKeys{}, err
	}
	return result.Value, nil
}

func generateVAPIDKeys() (VAPIDKeys, error) {
	private, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return VAPIDKeys{}, err
	}
	return VAPIDKeys{
		PublicKey:  base64.RawURLEncoding.EncodeToString(private.PublicKey().Bytes()),
		PrivateKey: base64.RawURLEncoding.EncodeToString(private.Bytes()),
	}, nil
}
