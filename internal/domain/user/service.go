package user

import (
	"context"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
)

// Service implements registration and authentication.
type Service struct {
	users  Repository
	hasher PasswordHasher
}

// NewService creates a user Service.
func NewService(users Repository, hasher PasswordHasher) *Service {
	return &Service{users: users, hasher: hasher}
}

// RegisterRequest holds the data of a new customer account.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates an active, non-staff account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	u := &User{
		Email:     NormalizeEmail(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Active:    true,
	}

	fields := make(map[string]string)
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		fields["email"] = "must be a valid address"
	}
	if len(req.Password) < MinPasswordLength {
		fields["password"] = "must have at least 8 characters"
	}
	if u.FirstName == "" {
		fields["first_name"] = "required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get user %d", id)
	}
	return u, nil
}

// List returns every account, for staff.
func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}
