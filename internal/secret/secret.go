// Package secret generates the random credentials the provisioner hands out.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// NewHex returns a random hex string of n bytes (2n characters).
func NewHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HtpasswdEntry returns a "user:hash" line in the bcrypt format Traefik's
// basicAuth middleware accepts.
func HtpasswdEntry(user, password string) (string, error) {
	if user == "" || password == "" {
		return "", fmt.Errorf("user and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return fmt.Sprintf("%s:%s", user, string(hash)), nil
}
