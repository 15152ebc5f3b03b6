package auth

import (
	"testing"
	"time"
)

func testConfig() TokenConfig {
	return TokenConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Expiry: time.Hour,
		Issuer: "happyd",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := CreateToken("ns1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(token, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Namespace != "ns1" {
		t.Fatalf("expected namespace ns1, got %q", claims.Namespace)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := CreateToken("ns1", testConfig())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	other := testConfig()
	other.Secret = []byte("ffffffffffffffffffffffffffffffff")
	if _, err := VerifyToken(token, other); err == nil {
		t.Fatalf("expected verification failure")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.Expiry = -time.Minute

	// CreateToken refuses non-positive expiries outright.
	if _, err := CreateToken("ns1", cfg); err == nil {
		t.Fatalf("expected expiry validation error")
	}
}

func TestCreateToken_RequiresNamespace(t *testing.T) {
	if _, err := CreateToken("", testConfig()); err == nil {
		t.Fatalf("expected error for empty namespace")
	}
}
