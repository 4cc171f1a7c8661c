package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Service implements catalog browsing and administration.
type Service struct {
	jewels     Repository
	categories CategoryRepository
}

// NewService creates a catalog Service.
func NewService(jewels Repository, categories CategoryRepository) *Service {
	return &Service{jewels: jewels, categories: categories}
}

// List returns active jewels matching f, ordered by name.
func (s *Service) List(ctx context.Context, f Filter) ([]Jewel, error) {
	f.Search = strings.TrimSpace(f.Search)
	f.CategorySlug = strings.TrimSpace(f.CategorySlug)

	jewels, err := s.jewels.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list jewels")
	}
	return jewels, nil
}

// Get returns a single jewel. Inactive jewels are reported as missing.
func (s *Service) Get(ctx context.Context, id int64) (*Jewel, error) {
	j, err := s.jewels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !j.Active {
		return nil, ErrJewelNotFound
	}
	return j, nil
}

// Create validates and stores a new jewel.
func (s *Service) Create(ctx context.Context, j *Jewel) error {
	if err := validate(j); err != nil {
		return err
	}
	if err := s.jewels.Create(ctx, j); err != nil {
		return errors.Wrap(err, "create jewel")
	}
	return nil
}

// Update validates and replaces an existing jewel.
func (s *Service) Update(ctx context.Context, j *Jewel) error {
	if err := validate(j); err != nil {
		return err
	}
	if err := s.jewels.Update(ctx, j); err != nil {
		if errors.Is(err, ErrJewelNotFound) {
			return err
		}
		return errors.Wrapf(err, "update jewel %d", j.ID)
	}
	return nil
}

// Delete removes a jewel from the catalog.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.jewels.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrJewelNotFound) {
			return err
		}
		return errors.Wrapf(err, "delete jewel %d", id)
	}
	return nil
}

// Categories lists every category ordered by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return cats, nil
}

// CreateCategory stores a category, deriving its slug from the name when
// none was given.
func (s *Service) CreateCategory(ctx context.Context, c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &ValidationError{Fields: map[string]string{"nome": "required"}}
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return &ValidationError{Fields: map[string]string{"slug": "cannot be derived from name"}}
	}

	if err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryExists) {
			return err
		}
		return errors.Wrap(err, "create category")
	}
	return nil
}

func validate(j *Jewel) error {
	j.Name = strings.TrimSpace(j.Name)

	fields := make(map[string]string)
	if j.Name == "" {
		fields["nome"] = "required"
	}
	if !j.Price.IsPositive() {
		fields["preco"] = "must be greater than 0"
	}
	if j.Stock < 0 {
		fields["estoque"] = "must not be negative"
	}
	if j.WeightGrams.Valid && j.WeightGrams.Decimal.IsNegative() {
		fields["peso_gramas"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
