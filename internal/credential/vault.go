// Package credential keeps account tokens in the operating system
// keyring instead of the session database.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "tempvortex"

// Vault stores secrets by key.
type Vault struct {
	ring keyring.Keyring
}

// Open opens the platform keyring, falling back to an encrypted file
// store under fileDir.
func Open(fileDir string) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("tempvortex-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Get retrieves a secret. Missing keys return an error satisfying
// IsNotFound.
func (v *Vault) Get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret, replacing any previous value.
func (v *Vault) Set(key, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "TempVortex " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret. Deleting a missing key is not an error.
func (v *Vault) Delete(key string) error {
	if err := v.ring.Remove(key); err != nil && !IsNotFound(err) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound)
}
