// Package secrets generates and validates the workload admin credential
// shared across the peer group.
package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordChars is limited to characters that survive shell quoting when
// the credential is handed to operator tooling.
const passwordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// passwordLength matches the length used by the platform's default
// credential generator.
const passwordLength = 12

// GeneratePassword returns a random alphanumeric admin password.
func GeneratePassword() (string, error) {
	out := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordChars)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		out[i] = passwordChars[n.Int64()]
	}
	return string(out), nil
}
