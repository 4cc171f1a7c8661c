package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/catalog"
)

const (
	listCategoriesSQL = `SELECT id, name, slug, description FROM categories ORDER BY name`

	createCategorySQL = `INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3)
		RETURNING id`

	upsertCategorySQL = `INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		RETURNING id`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// ListCategories returns every category ordered by name.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query categories")
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Category])
}

// CreateCategory inserts c. A taken name or slug yields catalog.ErrCategoryExists.
func (r *CategoryRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx, createCategorySQL, c.Name, c.Slug, c.Description).Scan(&c.ID)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return catalog.ErrCategoryExists
		}
		return errors.Wrapf(err, "insert category %q", c.Slug)
	}
	return nil
}

// UpsertCategory inserts c or refreshes the category with the same slug.
func (r *CategoryRepository) UpsertCategory(ctx context.Context, c *catalog.Category) error {
	if err := r.pool.QueryRow(ctx, upsertCategorySQL, c.Name, c.Slug, c.Description).Scan(&c.ID); err != nil {
		return errors.Wrapf(err, "upsert category %q", c.Slug)
	}
	return nil
}
