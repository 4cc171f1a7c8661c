package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/user"
)

const (
	userColumns = `id, email, first_name, last_name, phone, password_hash, is_staff, is_active, created_at`

	createUserSQL = `INSERT INTO users (email, password_hash, first_name, last_name, phone, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	upsertUserSQL = `INSERT INTO users (email, password_hash, first_name, last_name, phone, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone, is_staff = EXCLUDED.is_staff, is_active = EXCLUDED.is_active
		RETURNING id, created_at`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	listUsersSQL      = `SELECT ` + userColumns + ` FROM users ORDER BY id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u, returning user.ErrEmailTaken on a duplicate email.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Staff, u.Active,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return user.ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

// Upsert inserts u or overwrites the account with the same email.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, upsertUserSQL,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Staff, u.Active,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert user %s", u.Email)
	}
	return nil
}

// GetByID returns a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a user by its normalised email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// List returns every user ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[user.User])
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query user")
	}
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}
