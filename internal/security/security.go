// Package security provides credential hashing for customer logins.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// HashSize is the size of the derived password hash in bytes.
	HashSize = 32
	// SaltSize is the size of the per-customer salt.
	SaltSize = 16
	// Iterations is the PBKDF2 iteration count.
	Iterations = 100000
)

// GenerateSalt returns a new random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// HashPassword derives a salted hash from a plaintext password using
// PBKDF2-SHA256. The plaintext is never stored.
func HashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, HashSize, sha256.New)
}

// VerifyPassword reports whether password matches the stored hash. The
// comparison is constant-time.
func VerifyPassword(password string, salt, hash []byte) bool {
	derived := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(derived, hash) == 1
}
