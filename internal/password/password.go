// Package password hashes and verifies per-link access passwords.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes plaintext passwords and verifies candidates against stored
// hashes. Implementations should be safe for concurrent use.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// bcryptHasher implements Hasher on bcrypt. Verification is constant-time
// within bcrypt itself.
type bcryptHasher struct {
	cost int
}

// NewBcrypt returns a bcrypt-backed Hasher. Costs outside bcrypt's valid
// range fall back to the default cost (10).
func NewBcrypt(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *bcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
