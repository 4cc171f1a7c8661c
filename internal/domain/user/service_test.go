package user

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	byEmail map[string]*User
	nextID  int64
}

func newMockUsers() *mockUsers {
	return &mockUsers{byEmail: make(map[string]*User)}
}

func (m *mockUsers) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	m.nextID++
	u.ID = m.nextID
	m.byEmail[u.Email] = u
	return nil
}

func (m *mockUsers) GetByID(_ context.Context, id int64) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUsers) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.byEmail))
	for _, u := range m.byEmail {
		out = append(out, *u)
	}
	return out, nil
}

// plainHasher prefixes passwords so tests can tell hashes apart.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "h:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func TestService_Register(t *testing.T) {
	svc := NewService(newMockUsers(), plainHasher{})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{
		Email:     "  Maria@Example.COM ",
		Password:  "segredo123",
		FirstName: "Maria",
		LastName:  "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.Equal(t, "h:segredo123", u.PasswordHash)
	assert.True(t, u.Active)
	assert.False(t, u.Staff)
	assert.Equal(t, "Maria Silva", u.FullName())

	_, err = svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "outrasenha", FirstName: "M"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_RegisterValidation(t *testing.T) {
	svc := NewService(newMockUsers(), plainHasher{})

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "not-an-email", Password: "short"})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "password")
	assert.Contains(t, vErr.Fields, "first_name")
}

func TestService_Authenticate(t *testing.T) {
	users := newMockUsers()
	svc := NewService(users, plainHasher{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "ana@example.com", Password: "segredo123", FirstName: "Ana"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ANA@example.com", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	_, err = svc.Authenticate(ctx, "ana@example.com", "errada")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ninguem@example.com", "segredo123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	users.byEmail["ana@example.com"].Active = false
	_, err = svc.Authenticate(ctx, "ana@example.com", "segredo123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Get(t *testing.T) {
	svc := NewService(newMockUsers(), plainHasher{})

	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}
