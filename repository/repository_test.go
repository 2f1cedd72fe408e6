package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopverse/category_service/config"
)

var (
	_ Repository = (*MockRepository)(nil)
	_ Repository = (*SQLiteRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

// productStore is implemented by the repositories that can seed products
type productStore interface {
	Repository
	AddProduct(ctx context.Context, name, categoryID string) (string, error)
}

func repositories(t *testing.T) map[string]productStore {
	t.Helper()
	sqlite := NewSQLiteRepository(MemoryPath)
	return map[string]productStore{
		"mock":   NewMockRepository(),
		"sqlite": sqlite,
	}
}

// forEachRepository runs fn against a fresh, initialized instance of every
// repository that needs no external service
func forEachRepository(t *testing.T, fn func(t *testing.T, repo productStore)) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Initialize(ctx))
			defer func() { _ = repo.Cleanup(ctx) }()
			fn(t, repo)
		})
	}
}

func create(t *testing.T, repo Repository, name string, parentID *string, order int) *Category {
	t.Helper()
	c := &Category{Name: name, ParentID: parentID, DisplayOrder: order}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	require.NotEmpty(t, c.ID)
	return c
}

func TestCreateAndGetCategory(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		root := create(t, repo, "Electronics", nil, 0)
		child := &Category{Name: "Phones", Description: "Mobile phones", ImageURL: "/img/phones.png", ParentID: &root.ID}
		require.NoError(t, repo.CreateCategory(ctx, child))

		got, err := repo.GetCategory(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, "Phones", got.Name)
		assert.Equal(t, "Mobile phones", got.Description)
		assert.Equal(t, "/img/phones.png", got.ImageURL)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, root.ID, *got.ParentID)
		assert.False(t, got.CreatedAt.IsZero())

		_, err = repo.GetCategory(ctx, "2d9e35e4-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestCreateCategoryErrors(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		create(t, repo, "Books", nil, 0)

		err := repo.CreateCategory(ctx, &Category{Name: "Books"})
		assert.ErrorIs(t, err, ErrDuplicateName)

		missing := "4b7f4a52-0000-4000-8000-000000000000"
		err = repo.CreateCategory(ctx, &Category{Name: "Orphan", ParentID: &missing})
		assert.ErrorIs(t, err, ErrNodeNotFound)

		err = repo.CreateCategory(ctx, &Category{Name: ""})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestGetAllCategoriesOrder(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		second := create(t, repo, "Clothing", nil, 1)
		create(t, repo, "Electronics", nil, 0)
		create(t, repo, "Shoes", &second.ID, 0)
		create(t, repo, "hats", &second.ID, 1)
		create(t, repo, "Bags", &second.ID, 1)

		all, err := repo.GetAllCategories(context.Background())
		require.NoError(t, err)

		var names []string
		for _, c := range all {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Electronics", "Clothing", "Shoes", "Bags", "hats"}, names)
	})
}

func TestUpdateCategory(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		a := create(t, repo, "A", nil, 0)
		b := create(t, repo, "B", nil, 1)

		a.Name = "A2"
		a.ParentID = &b.ID
		a.DisplayOrder = 0
		require.NoError(t, repo.UpdateCategory(ctx, a))

		got, err := repo.GetCategory(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "A2", got.Name)
		assert.Equal(t, b.ID, *got.ParentID)

		b.Name = "A2"
		assert.ErrorIs(t, repo.UpdateCategory(ctx, b), ErrDuplicateName)

		ghost := &Category{ID: "0c1e0f9a-0000-4000-8000-000000000000", Name: "Ghost"}
		assert.ErrorIs(t, repo.UpdateCategory(ctx, ghost), ErrNodeNotFound)
	})
}

func TestNameExists(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		c := create(t, repo, "Garden", nil, 0)

		exists, err := repo.NameExists(ctx, "Garden", "")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.NameExists(ctx, "Garden", c.ID)
		require.NoError(t, err)
		assert.False(t, exists, "a category does not conflict with itself")

		exists, err = repo.NameExists(ctx, "Kitchen", "")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestNextDisplayOrder(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()

		next, err := repo.NextDisplayOrder(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, next)

		root := create(t, repo, "Root", nil, 0)
		create(t, repo, "Other", nil, 4)

		next, err = repo.NextDisplayOrder(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, next)

		next, err = repo.NextDisplayOrder(ctx, &root.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, next)
	})
}

func TestSetDisplayOrder(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		parent := create(t, repo, "Parent", nil, 0)
		a := create(t, repo, "A", &parent.ID, 0)
		b := create(t, repo, "B", &parent.ID, 1)
		c := create(t, repo, "C", &parent.ID, 2)

		require.NoError(t, repo.SetDisplayOrder(ctx, &parent.ID, []string{c.ID, a.ID, b.ID}))

		for id, want := range map[string]int{c.ID: 0, a.ID: 1, b.ID: 2} {
			got, err := repo.GetCategory(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, got.DisplayOrder, got.Name)
		}

		// the parent is a root, not a child of itself: nothing may change
		err := repo.SetDisplayOrder(ctx, &parent.ID, []string{a.ID, parent.ID})
		assert.ErrorIs(t, err, ErrNodeNotFound)
		got, err := repo.GetCategory(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.DisplayOrder)

		require.NoError(t, repo.SetDisplayOrder(ctx, nil, []string{parent.ID}))
	})
}

func TestProductCountsAndDelete(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo productStore) {
		ctx := context.Background()
		parent := create(t, repo, "Parent", nil, 0)
		child := create(t, repo, "Child", &parent.ID, 0)
		_, err := repo.AddProduct(ctx, "p1", child.ID)
		require.NoError(t, err)
		_, err = repo.AddProduct(ctx, "p2", child.ID)
		require.NoError(t, err)

		counts, err := repo.ProductCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[child.ID])
		assert.Zero(t, counts[parent.ID])

		// still referenced by a child
		assert.ErrorIs(t, repo.DeleteCategory(ctx, parent.ID), ErrInvalidInput)

		empty := create(t, repo, "Empty", nil, 1)
		require.NoError(t, repo.DeleteCategory(ctx, empty.ID))
		assert.ErrorIs(t, repo.DeleteCategory(ctx, empty.ID), ErrNodeNotFound)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, &config.ServerConfig{StorageDriver: config.StorageSQLite, SQLitePath: MemoryPath}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Cleanup(ctx))

	repo, err = Open(ctx, &config.ServerConfig{StorageDriver: config.StorageMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockRepository{}, repo)

	_, err = Open(ctx, &config.ServerConfig{StorageDriver: "mongo"}, nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}
