package catalog

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJewelRepo struct {
	byID      map[int64]*Jewel
	lastList  Filter
	created   *Jewel
	updateErr error
	deleteErr error
}

func (m *mockJewelRepo) List(_ context.Context, f Filter) ([]Jewel, error) {
	m.lastList = f
	return nil, nil
}

func (m *mockJewelRepo) GetByID(_ context.Context, id int64) (*Jewel, error) {
	j, ok := m.byID[id]
	if !ok {
		return nil, ErrJewelNotFound
	}
	return j, nil
}

func (m *mockJewelRepo) GetByIDs(_ context.Context, _ []int64) ([]Jewel, error) {
	return nil, nil
}

func (m *mockJewelRepo) Create(_ context.Context, j *Jewel) error {
	j.ID = 42
	m.created = j
	return nil
}

func (m *mockJewelRepo) Update(_ context.Context, _ *Jewel) error {
	return m.updateErr
}

func (m *mockJewelRepo) Delete(_ context.Context, _ int64) error {
	return m.deleteErr
}

type mockCategoryRepo struct {
	created *Category
	err     error
}

func (m *mockCategoryRepo) ListCategories(_ context.Context) ([]Category, error) {
	return []Category{{ID: 1, Name: "Anéis", Slug: "aneis"}}, nil
}

func (m *mockCategoryRepo) CreateCategory(_ context.Context, c *Category) error {
	m.created = c
	return m.err
}

func TestService_ListTrimsFilter(t *testing.T) {
	repo := &mockJewelRepo{}
	svc := NewService(repo, &mockCategoryRepo{})

	_, err := svc.List(context.Background(), Filter{Search: "  ouro ", CategorySlug: " aneis", InStock: true})
	require.NoError(t, err)
	assert.Equal(t, Filter{Search: "ouro", CategorySlug: "aneis", InStock: true}, repo.lastList)
}

func TestService_GetHidesInactive(t *testing.T) {
	repo := &mockJewelRepo{byID: map[int64]*Jewel{
		1: {ID: 1, Name: "Anel", Active: true},
		2: {ID: 2, Name: "Colar", Active: false},
	}}
	svc := NewService(repo, &mockCategoryRepo{})

	j, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Anel", j.Name)

	_, err = svc.Get(context.Background(), 2)
	require.ErrorIs(t, err, ErrJewelNotFound)

	_, err = svc.Get(context.Background(), 3)
	require.ErrorIs(t, err, ErrJewelNotFound)
}

func TestService_CreateValidates(t *testing.T) {
	tests := []struct {
		name       string
		jewel      Jewel
		wantFields []string
	}{
		{
			name:       "missing name and price",
			jewel:      Jewel{Name: "  "},
			wantFields: []string{"nome", "preco"},
		},
		{
			name:       "negative stock",
			jewel:      Jewel{Name: "Anel", Price: decimal.NewFromInt(10), Stock: -1},
			wantFields: []string{"estoque"},
		},
		{
			name: "negative weight",
			jewel: Jewel{
				Name:        "Anel",
				Price:       decimal.NewFromInt(10),
				WeightGrams: decimal.NewNullDecimal(decimal.NewFromInt(-2)),
			},
			wantFields: []string{"peso_gramas"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockJewelRepo{}
			svc := NewService(repo, &mockCategoryRepo{})

			j := tt.jewel
			err := svc.Create(context.Background(), &j)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			for _, f := range tt.wantFields {
				assert.Contains(t, vErr.Fields, f)
			}
			assert.Nil(t, repo.created)
		})
	}
}

func TestService_CreateStores(t *testing.T) {
	repo := &mockJewelRepo{}
	svc := NewService(repo, &mockCategoryRepo{})

	j := &Jewel{Name: " Anel Solitário ", Price: decimal.RequireFromString("1299.90"), Stock: 3}
	require.NoError(t, svc.Create(context.Background(), j))
	assert.Equal(t, int64(42), j.ID)
	assert.Equal(t, "Anel Solitário", repo.created.Name)
}

func TestService_UpdateNotFound(t *testing.T) {
	repo := &mockJewelRepo{updateErr: ErrJewelNotFound}
	svc := NewService(repo, &mockCategoryRepo{})

	err := svc.Update(context.Background(), &Jewel{ID: 9, Name: "Anel", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrJewelNotFound)
}

func TestService_DeleteWrapsStorageError(t *testing.T) {
	repo := &mockJewelRepo{deleteErr: errors.New("connection reset")}
	svc := NewService(repo, &mockCategoryRepo{})

	err := svc.Delete(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete jewel 9")
}

func TestService_CreateCategoryDerivesSlug(t *testing.T) {
	repo := &mockCategoryRepo{}
	svc := NewService(&mockJewelRepo{}, repo)

	c := &Category{Name: "Brincos & Argolas"}
	require.NoError(t, svc.CreateCategory(context.Background(), c))
	assert.Equal(t, "brincos-argolas", repo.created.Slug)
}

func TestService_CreateCategoryDuplicate(t *testing.T) {
	repo := &mockCategoryRepo{err: ErrCategoryExists}
	svc := NewService(&mockJewelRepo{}, repo)

	err := svc.CreateCategory(context.Background(), &Category{Name: "Anéis"})
	require.ErrorIs(t, err, ErrCategoryExists)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Anéis", "aneis"},
		{"Colares de Pérola", "colares-de-perola"},
		{"  Brincos -- Ouro 18k ", "brincos-ouro-18k"},
		{"Pulseiras!", "pulseiras"},
		{"***", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
