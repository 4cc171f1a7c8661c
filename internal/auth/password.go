package auth

import (
	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using bcrypt.DefaultCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(b), nil
}

// Compare returns nil when password matches hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
