// Package auth keeps the admin token that guards destructive operations such
// as clearing the high-score table.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const keyAdminToken = "admin-token"

// TokenStore keeps one token in the OS keychain, or in a file on hosts
// without a keyring backend (headless servers, CI).
type TokenStore struct {
	service      string
	account      string
	fallbackPath string
	mu           sync.Mutex
}

func NewTokenStore(serviceName, account, fallbackPath string) *TokenStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "photohunt"
	}
	if strings.TrimSpace(account) == "" {
		account = "default"
	}
	return &TokenStore{
		service:      serviceName,
		account:      account,
		fallbackPath: fallbackPath,
	}
}

func (k *TokenStore) key() string {
	return k.account + "/" + keyAdminToken
}

// Ensure returns the stored token, generating and storing one if absent.
func (k *TokenStore) Ensure() (string, error) {
	tok, err := k.Get()
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", err
	}
	return k.Rotate()
}

// Rotate replaces the token with a fresh random one.
func (k *TokenStore) Rotate() (string, error) {
	tok := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := k.Set(tok); err != nil {
		return "", err
	}
	return tok, nil
}

func (k *TokenStore) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("auth: token is required")
	}
	if err := keyring.Set(k.service, k.key(), value); err == nil {
		return nil
	} else if !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring set: %w", err)
	}
	return k.setFallback(value)
}

func (k *TokenStore) Get() (string, error) {
	val, err := keyring.Get(k.service, k.key())
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("auth: keyring get: %w", err)
	}

	fallback, ferr := k.getFallback()
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, keyring.ErrNotFound) {
		return "", keyring.ErrNotFound
	}
	return "", ferr
}

// Delete removes the token from the keyring and the fallback file.
func (k *TokenStore) Delete() error {
	err := keyring.Delete(k.service, k.key())
	ferr := k.deleteFallback()
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring delete: %w", err)
	}
	return ferr
}

// Verify reports whether candidate matches the stored token.
func (k *TokenStore) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	tok, err := k.Get()
	if err != nil || tok == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok), []byte(candidate)) == 1
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

// setFallback writes the bare token to the fallback file.
func (k *TokenStore) setFallback(value string) error {
	if k.fallbackPath == "" {
		return errors.New("auth: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("auth: create token dir: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("auth: write token file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(k.fallbackPath, 0o600)
}

func (k *TokenStore) getFallback() (string, error) {
	if k.fallbackPath == "" {
		return "", keyring.ErrNotFound
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	raw, err := os.ReadFile(k.fallbackPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", keyring.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("auth: read token file: %w", err)
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", keyring.ErrNotFound
	}
	return tok, nil
}

func (k *TokenStore) deleteFallback() error {
	if k.fallbackPath == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.Remove(k.fallbackPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth: remove token file: %w", err)
	}
	return nil
}
