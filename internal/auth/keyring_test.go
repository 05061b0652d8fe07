package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokenStoreEnsureAndVerify(t *testing.T) {
	keyring.MockInit()
	k := NewTokenStore("photohunt-test", "server", filepath.Join(t.TempDir(), "admin-token"))

	tok, err := k.Ensure()
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(tok) != 32 {
		t.Fatalf("unexpected token %q", tok)
	}
	again, err := k.Ensure()
	if err != nil || again != tok {
		t.Fatalf("Ensure not stable: %q vs %q (%v)", again, tok, err)
	}
	if !k.Verify(tok) {
		t.Error("expected stored token to verify")
	}
	if k.Verify("nope") || k.Verify("") {
		t.Error("expected wrong token to fail")
	}

	rotated, err := k.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated == tok || k.Verify(tok) {
		t.Error("expected rotation to invalidate the old token")
	}

	if err := k.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := k.Get(); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTokenStoreFallbackFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring backend not available"))
	defer keyring.MockInit()

	path := filepath.Join(t.TempDir(), "nested", "admin-token")
	k := NewTokenStore("photohunt-test", "server", path)

	if err := k.Set("abc123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected fallback file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
	got, err := k.Get()
	if err != nil || got != "abc123" {
		t.Fatalf("Get: %q %v", got, err)
	}
	if err := k.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := k.Get(); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
