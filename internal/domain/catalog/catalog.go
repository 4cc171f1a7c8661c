// Package catalog holds the jewel catalog: jewels, categories and the rules
// that keep them consistent.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrJewelNotFound is returned when a requested jewel does not exist.
	ErrJewelNotFound = errors.New("jewel not found")
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryExists is returned when a category name or slug is already taken.
	ErrCategoryExists = errors.New("category already exists")
)

// Category groups jewels in the storefront (rings, necklaces, ...).
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// Jewel is a catalog product.
type Jewel struct {
	ID           int64
	SKU          string
	Name         string
	Description  string
	Price        decimal.Decimal
	Stock        int
	CategoryID   *int64
	CategorySlug string
	Material     string
	WeightGrams  decimal.NullDecimal
	Dimensions   string
	ImageURL     string
	Featured     bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InStock reports whether at least one unit is available.
func (j Jewel) InStock() bool {
	return j.Stock > 0
}

// Filter narrows a catalog listing. Zero value lists every active jewel.
type Filter struct {
	InStock      bool
	Search       string
	CategorySlug string
	FeaturedOnly bool
}

// ValidationError lists field-level problems with a write request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Repository defines persistence operations for jewels.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Jewel, error)
	GetByID(ctx context.Context, id int64) (*Jewel, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Jewel, error)
	Create(ctx context.Context, j *Jewel) error
	Update(ctx context.Context, j *Jewel) error
	Delete(ctx context.Context, id int64) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) error
}

// InsufficientStockError reports that a jewel cannot cover the requested
// quantity.
type InsufficientStockError struct {
	JewelID   int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for jewel %d: available %d, requested %d", e.JewelID, e.Available, e.Requested)
}
