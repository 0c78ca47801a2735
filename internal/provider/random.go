package provider

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	loginAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomLogin returns a random lowercase base36 mailbox login of length n.
func RandomLogin(n int) (string, error) {
	s, err := randomString(loginAlphabet, n)
	if err != nil {
		return "", fmt.Errorf("generating login: %w", err)
	}
	return s, nil
}

// RandomSecret returns a fresh random password of length n followed by
// a fixed suffix that satisfies common complexity rules. Every call
// draws new randomness; secrets are never shared between accounts.
func RandomSecret(n int) (string, error) {
	s, err := randomString(secretAlphabet, n)
	if err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return s + "!Aa1", nil
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
