// ABOUTME: Password hashing with bcrypt and legacy SHA-256 verification.
// ABOUTME: Legacy digests come from snapshots written by older app versions.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashingFailed is returned when bcrypt cannot hash a password.
var ErrHashingFailed = errors.New("failed to hash password")

// Hasher hashes and verifies passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher using cost, or bcrypt.DefaultCost when cost is
// outside bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns a bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return string(out), nil
}

// Verify reports whether password matches hash. Both bcrypt hashes and
// legacy unsalted SHA-256 hex digests are accepted.
func (h *Hasher) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	if IsLegacyHash(hash) {
		want := LegacyDigest(password)
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(want)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsLegacyHash reports whether hash is a hex SHA-256 digest rather than bcrypt.
func IsLegacyHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// LegacyDigest returns the unsalted SHA-256 hex digest of password.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
