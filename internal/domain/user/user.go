// Package user manages customer and staff accounts.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrUserNotFound is returned when a user lookup has no match.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords
	// and inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// User is an account holder.
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Staff        bool
	Active       bool
	CreatedAt    time.Time
}

// FullName joins first and last names.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ValidationError lists field-level problems with a registration.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid registration")
	for _, name := range []string{"email", "password", "first_name"} {
		if reason, ok := e.Fields[name]; ok {
			b.WriteString("; " + name + ": " + reason)
		}
	}
	return b.String()
}

// Repository persists users. Emails are stored lower-cased.
type Repository interface {
	// Create returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
