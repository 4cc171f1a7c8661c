package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/catalog"
)

const jewelColumns = `j.id, COALESCE(j.sku, ''), j.name, j.description, j.price, j.stock,
	j.category_id, COALESCE(c.slug, ''), j.material, j.weight_grams, j.dimensions,
	j.image_url, j.featured, j.active, j.created_at, j.updated_at`

const (
	listJewelsSQL = `SELECT ` + jewelColumns + `
		FROM jewels j LEFT JOIN categories c ON c.id = j.category_id
		WHERE j.active
			AND (NOT $1::boolean OR j.stock > 0)
			AND ($2::text = '' OR j.name ILIKE $2 OR j.description ILIKE $2)
			AND ($3::text = '' OR c.slug = $3)
			AND (NOT $4::boolean OR j.featured)
		ORDER BY j.name, j.id`

	getJewelByIDSQL = `SELECT ` + jewelColumns + `
		FROM jewels j LEFT JOIN categories c ON c.id = j.category_id
		WHERE j.id = $1`

	getJewelsByIDsSQL = `SELECT ` + jewelColumns + `
		FROM jewels j LEFT JOIN categories c ON c.id = j.category_id
		WHERE j.id = ANY($1)`

	createJewelSQL = `INSERT INTO jewels (sku, name, description, price, stock, category_id,
			material, weight_grams, dimensions, image_url, featured, active)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	updateJewelSQL = `UPDATE jewels SET sku = NULLIF($2, ''), name = $3, description = $4,
			price = $5, stock = $6, category_id = $7, material = $8, weight_grams = $9,
			dimensions = $10, image_url = $11, featured = $12, active = $13, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	deleteJewelSQL = `DELETE FROM jewels WHERE id = $1`

	upsertJewelBySKUSQL = `INSERT INTO jewels (sku, name, description, price, stock, category_id,
			material, weight_grams, dimensions, image_url, featured, active)
		VALUES ($1, $2, $3, $4, $5, (SELECT id FROM categories WHERE slug = NULLIF($6, '')),
			$7, $8, $9, $10, $11, TRUE)
		ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, stock = EXCLUDED.stock, category_id = EXCLUDED.category_id,
			material = EXCLUDED.material, weight_grams = EXCLUDED.weight_grams,
			dimensions = EXCLUDED.dimensions, image_url = EXCLUDED.image_url,
			featured = EXCLUDED.featured, active = TRUE, updated_at = now()
		RETURNING id, (xmax = 0)`
)

var _ catalog.Repository = (*JewelRepository)(nil)

// JewelRepository implements catalog.Repository backed by PostgreSQL.
type JewelRepository struct {
	pool *pgxpool.Pool
}

// NewJewelRepository returns a JewelRepository that uses the given pool.
func NewJewelRepository(pool *pgxpool.Pool) *JewelRepository {
	return &JewelRepository{pool: pool}
}

// List returns active jewels matching f ordered by name.
func (r *JewelRepository) List(ctx context.Context, f catalog.Filter) ([]catalog.Jewel, error) {
	rows, err := r.pool.Query(ctx, listJewelsSQL, f.InStock, likePattern(f.Search), f.CategorySlug, f.FeaturedOnly)
	if err != nil {
		return nil, errors.Wrap(err, "query jewels")
	}
	return pgx.CollectRows(rows, scanJewel)
}

// GetByID returns a jewel, active or not.
func (r *JewelRepository) GetByID(ctx context.Context, id int64) (*catalog.Jewel, error) {
	rows, err := r.pool.Query(ctx, getJewelByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query jewel %d", id)
	}

	j, err := pgx.CollectExactlyOneRow(rows, scanJewel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrJewelNotFound
		}
		return nil, errors.Wrapf(err, "scan jewel %d", id)
	}
	return &j, nil
}

// GetByIDs returns the jewels among ids that exist.
func (r *JewelRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Jewel, error) {
	rows, err := r.pool.Query(ctx, getJewelsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query jewels by ids")
	}
	return pgx.CollectRows(rows, scanJewel)
}

// Create inserts j and fills its id and timestamps.
func (r *JewelRepository) Create(ctx context.Context, j *catalog.Jewel) error {
	err := r.pool.QueryRow(ctx, createJewelSQL,
		j.SKU, j.Name, j.Description, j.Price, j.Stock, j.CategoryID,
		j.Material, j.WeightGrams, j.Dimensions, j.ImageURL, j.Featured, j.Active,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return jewelWriteError(err)
	}
	return nil
}

// Update replaces every editable column of j.
func (r *JewelRepository) Update(ctx context.Context, j *catalog.Jewel) error {
	err := r.pool.QueryRow(ctx, updateJewelSQL,
		j.ID, j.SKU, j.Name, j.Description, j.Price, j.Stock, j.CategoryID,
		j.Material, j.WeightGrams, j.Dimensions, j.ImageURL, j.Featured, j.Active,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrJewelNotFound
		}
		return jewelWriteError(err)
	}
	return nil
}

// Delete removes a jewel. Order history keeps its snapshot.
func (r *JewelRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteJewelSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete jewel %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrJewelNotFound
	}
	return nil
}

// UpsertBySKU inserts or refreshes a jewel keyed by its SKU, resolving the
// category by slug. It reports whether a new row was created.
func (r *JewelRepository) UpsertBySKU(ctx context.Context, j *catalog.Jewel) (bool, error) {
	if j.SKU == "" {
		return false, errors.New("sku is required for upsert")
	}
	var inserted bool
	err := r.pool.QueryRow(ctx, upsertJewelBySKUSQL,
		j.SKU, j.Name, j.Description, j.Price, j.Stock, j.CategorySlug,
		j.Material, j.WeightGrams, j.Dimensions, j.ImageURL, j.Featured,
	).Scan(&j.ID, &inserted)
	if err != nil {
		return false, errors.Wrapf(err, "upsert jewel %s", j.SKU)
	}
	return inserted, nil
}

func jewelWriteError(err error) error {
	switch pgCode(err) {
	case codeForeignKeyViolation:
		return &catalog.ValidationError{Fields: map[string]string{"categoria_id": "unknown category"}}
	case codeUniqueViolation:
		return &catalog.ValidationError{Fields: map[string]string{"sku": "already in use"}}
	default:
		return errors.Wrap(err, "write jewel")
	}
}

// likePattern turns a search term into an ILIKE substring pattern.
func likePattern(search string) string {
	if search == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func scanJewel(row pgx.CollectableRow) (catalog.Jewel, error) {
	var j catalog.Jewel
	err := row.Scan(
		&j.ID, &j.SKU, &j.Name, &j.Description, &j.Price, &j.Stock,
		&j.CategoryID, &j.CategorySlug, &j.Material, &j.WeightGrams, &j.Dimensions,
		&j.ImageURL, &j.Featured, &j.Active, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}
