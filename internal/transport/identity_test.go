package transport

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func TestLoadIdentityFromEnv(t *testing.T) {
	seed := strings.Repeat("ab", ed25519.SeedSize)
	getenv := func(string) string { return seed }

	var warn strings.Builder
	id, err := LoadIdentity(getenv, &warn)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if warn.Len() != 0 {
		t.Errorf("configured key printed a warning: %q", warn.String())
	}

	// Same seed, same key.
	again, err := LoadIdentity(getenv, &warn)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if !id.key.Equal(again.key) {
		t.Error("identity not deterministic for a fixed seed")
	}
}

func TestLoadIdentityGenerates(t *testing.T) {
	var warn strings.Builder
	id, err := LoadIdentity(func(string) string { return "" }, &warn)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	out := warn.String()
	if !strings.Contains(out, "using secret key ") {
		t.Fatalf("generated key not announced: %q", out)
	}
	seedHex := strings.TrimSpace(strings.TrimPrefix(out, "using secret key "))
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		t.Fatalf("announced seed %q is not a valid seed", seedHex)
	}
	if !id.key.Equal(ed25519.NewKeyFromSeed(seed)) {
		t.Error("announced seed does not reproduce the key")
	}
}

func TestLoadIdentityRejectsBadSeed(t *testing.T) {
	for _, bad := range []string{"zz", "abcd", strings.Repeat("ab", 31)} {
		if _, err := LoadIdentity(func(string) string { return bad }, &strings.Builder{}); err == nil {
			t.Errorf("LoadIdentity(%q) succeeded, want error", bad)
		}
	}
}

func TestIdentityCertificate(t *testing.T) {
	id, err := LoadIdentity(func(string) string { return strings.Repeat("01", ed25519.SeedSize) }, nil)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	cert, err := id.Certificate()
	if err != nil {
		t.Fatalf("Certificate() error = %v", err)
	}
	if len(cert.Certificate) != 1 {
		t.Errorf("certificate chain length = %d, want 1", len(cert.Certificate))
	}
}
