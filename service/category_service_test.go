package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopverse/category_service/apperrors"
	"github.com/shopverse/category_service/cache"
	"github.com/shopverse/category_service/models"
	"github.com/shopverse/category_service/repository"
	"github.com/shopverse/category_service/tree"
)

type fixture struct {
	svc   *CategoryService
	repo  *repository.MockRepository
	cache *cache.MockCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMockRepository()
	c := cache.NewMockCache()
	return &fixture{svc: NewCategoryService(repo, c, nil), repo: repo, cache: c}
}

func strPtr(s string) *string { return &s }

func (f *fixture) create(t *testing.T, name string, parentID *string) *models.CategoryNode {
	t.Helper()
	node, err := f.svc.Create(context.Background(), models.CategoryRequest{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return node
}

func (f *fixture) childNames(t *testing.T, parentID *string) []string {
	t.Helper()
	nodes, err := f.svc.Tree(context.Background())
	require.NoError(t, err)
	list := nodes
	if parentID != nil {
		parent := tree.Find(nodes, *parentID)
		require.NotNil(t, parent)
		list = parent.Children
	}
	names := make([]string, 0, len(list))
	for _, n := range list {
		names = append(names, n.Name)
	}
	return names
}

func TestCreateAppendsToSiblings(t *testing.T) {
	f := newFixture(t)

	electronics := f.create(t, "Electronics", nil)
	clothing := f.create(t, "  Clothing  ", nil)
	phones := f.create(t, "Phones", &electronics.ID)

	assert.Equal(t, 0, electronics.DisplayOrder)
	assert.Equal(t, 1, clothing.DisplayOrder)
	assert.Equal(t, "Clothing", clothing.Name, "name should be trimmed")
	assert.Equal(t, 0, phones.DisplayOrder)
	assert.Equal(t, "Electronics", phones.ParentName)
	assert.Equal(t, []string{"Electronics", "Clothing"}, f.childNames(t, nil))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Books", nil)

	_, err := f.svc.Create(ctx, models.CategoryRequest{Name: "   "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Name is required")

	_, err = f.svc.Create(ctx, models.CategoryRequest{Name: "Books"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCategory)

	_, err = f.svc.Create(ctx, models.CategoryRequest{Name: "Orphan", ParentID: strPtr("8a2b3c4d-5e6f-4a1b-8c9d-0e1f2a3b4c5d")})
	assert.ErrorIs(t, err, apperrors.ErrParentNotFound)

	_, err = f.svc.Create(ctx, models.CategoryRequest{Name: "Bad parent", ParentID: strPtr("not-a-uuid")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTreeCountsAndCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	electronics := f.create(t, "Electronics", nil)
	phones := f.create(t, "Phones", &electronics.ID)
	laptops := f.create(t, "Laptops", &electronics.ID)
	for i := 0; i < 5; i++ {
		_, err := f.repo.AddProduct(ctx, "phone", phones.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := f.repo.AddProduct(ctx, "laptop", laptops.ID)
		require.NoError(t, err)
	}
	f.cache.Reset()

	nodes, err := f.svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	root := nodes[0]
	assert.Equal(t, int64(0), root.DirectCount)
	assert.Equal(t, int64(8), root.TotalCount)
	assert.Equal(t, 0, root.Depth)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Phones", root.Children[0].Name)
	assert.Equal(t, "Electronics", root.Children[0].ParentName)
	assert.Equal(t, 1, root.Children[0].Depth)
	assert.Equal(t, int64(5), root.Children[0].TotalCount)

	_, err = f.svc.Tree(ctx)
	require.NoError(t, err)
	getTree, setTree, _, _, _ := f.cache.GetCallCounts()
	assert.Equal(t, 2, getTree)
	assert.Equal(t, 1, setTree, "second read should be served from cache")
}

func TestBuildTreeOrdersSiblings(t *testing.T) {
	p := "p"
	categories := []*repository.Category{
		{ID: "p", Name: "Parent"},
		{ID: "c", Name: "charlie", ParentID: &p, DisplayOrder: 1},
		{ID: "a", Name: "Alpha", ParentID: &p, DisplayOrder: 1},
		{ID: "z", Name: "Zulu", ParentID: &p, DisplayOrder: 0},
		{ID: "orphan", Name: "Orphan", ParentID: strPtr("missing")},
	}

	nodes := BuildTree(categories, map[string]int64{"a": 2, "z": -1})

	require.Len(t, nodes, 1)
	var ids []string
	for _, c := range nodes[0].Children {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"z", "a", "c"}, ids)
	assert.Equal(t, int64(2), nodes[0].TotalCount)
	assert.Equal(t, int64(0), tree.Find(nodes, "z").DirectCount)
	assert.Nil(t, tree.Find(nodes, "orphan"))
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.create(t, "Parent", nil)
	a := f.create(t, "A", &parent.ID)
	b := f.create(t, "B", &parent.ID)
	c := f.create(t, "C", &parent.ID)
	f.cache.Reset()

	err := f.svc.Reorder(ctx, models.ReorderRequest{ParentID: &parent.ID, OrderedCategoryIDs: []string{b.ID, c.ID, a.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, f.childNames(t, &parent.ID))

	_, _, invalidate, _, _ := f.cache.GetCallCounts()
	assert.Equal(t, 1, invalidate)

	// same command again changes nothing
	require.NoError(t, f.svc.Reorder(ctx, models.ReorderRequest{ParentID: &parent.ID, OrderedCategoryIDs: []string{b.ID, c.ID, a.ID}}))
	assert.Equal(t, []string{"B", "C", "A"}, f.childNames(t, &parent.ID))
}

func TestReorderRootLevel(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "First", nil)
	second := f.create(t, "Second", nil)

	err := f.svc.Reorder(context.Background(), models.ReorderRequest{OrderedCategoryIDs: []string{second.ID, first.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Second", "First"}, f.childNames(t, nil))
}

func TestReorderRejectsMismatchedSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.create(t, "Parent", nil)
	a := f.create(t, "A", &parent.ID)
	b := f.create(t, "B", &parent.ID)
	other := f.create(t, "Other", nil)

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "missing sibling", ids: []string{a.ID}},
		{name: "foreign id", ids: []string{a.ID, other.ID}},
		{name: "duplicate id", ids: []string{a.ID, a.ID}},
		{name: "extra id", ids: []string{a.ID, b.ID, other.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Reorder(ctx, models.ReorderRequest{ParentID: &parent.ID, OrderedCategoryIDs: tt.ids})
			assert.ErrorIs(t, err, apperrors.ErrInvalidReorder)
		})
	}
	assert.Equal(t, []string{"A", "B"}, f.childNames(t, &parent.ID))

	err := f.svc.Reorder(ctx, models.ReorderRequest{ParentID: &parent.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = f.svc.Reorder(ctx, models.ReorderRequest{ParentID: strPtr("missing"), OrderedCategoryIDs: []string{a.ID}})
	assert.ErrorIs(t, err, apperrors.ErrParentNotFound)
}

func TestReorderEmptySiblingsIsNoop(t *testing.T) {
	f := newFixture(t)
	leaf := f.create(t, "Leaf", nil)

	err := f.svc.Reorder(context.Background(), models.ReorderRequest{ParentID: &leaf.ID, OrderedCategoryIDs: []string{"anything"}})
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	electronics := f.create(t, "Electronics", nil)
	phones := f.create(t, "Phones", &electronics.ID)
	f.create(t, "Laptops", &electronics.ID)

	updated, err := f.svc.Update(ctx, phones.ID, models.CategoryRequest{Name: "Mobile", Description: "All phones", ParentID: &electronics.ID})
	require.NoError(t, err)
	assert.Equal(t, "Mobile", updated.Name)
	assert.Equal(t, 0, updated.DisplayOrder, "order is kept when the parent does not change")
	assert.Equal(t, "Electronics", updated.ParentName)

	_, err = f.svc.Update(ctx, phones.ID, models.CategoryRequest{Name: "Laptops", ParentID: &electronics.ID})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCategory)

	_, err = f.svc.Update(ctx, "6f1c2a9e-3b5d-4c8e-9a7f-1d2e3f4a5b6c", models.CategoryRequest{Name: "Ghost"})
	assert.ErrorIs(t, err, apperrors.ErrCategoryNotFound)
}

func TestUpdateMoveRenumbersBothLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	electronics := f.create(t, "Electronics", nil)
	clothing := f.create(t, "Clothing", nil)
	phones := f.create(t, "Phones", &electronics.ID)
	laptops := f.create(t, "Laptops", &electronics.ID)
	f.create(t, "Shirts", &clothing.ID)

	moved, err := f.svc.Update(ctx, phones.ID, models.CategoryRequest{Name: "Phones", ParentID: &clothing.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.DisplayOrder)
	assert.Equal(t, "Clothing", moved.ParentName)

	assert.Equal(t, []string{"Shirts", "Phones"}, f.childNames(t, &clothing.ID))
	stored, err := f.repo.GetCategory(ctx, laptops.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.DisplayOrder, "old sibling list should be renumbered")

	// to the root level
	moved, err = f.svc.Update(ctx, phones.ID, models.CategoryRequest{Name: "Phones"})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 2, moved.DisplayOrder)
}

func TestUpdateRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A", nil)
	b := f.create(t, "B", &a.ID)
	c := f.create(t, "C", &b.ID)

	_, err := f.svc.Update(ctx, a.ID, models.CategoryRequest{Name: "A", ParentID: &a.ID})
	assert.ErrorIs(t, err, apperrors.ErrSelfParent)

	_, err = f.svc.Update(ctx, a.ID, models.CategoryRequest{Name: "A", ParentID: &c.ID})
	assert.ErrorIs(t, err, apperrors.ErrDescendantParent)

	_, err = f.svc.Update(ctx, b.ID, models.CategoryRequest{Name: "B", ParentID: &c.ID})
	assert.ErrorIs(t, err, apperrors.ErrDescendantParent)

	// moving a leaf up is fine
	_, err = f.svc.Update(ctx, c.ID, models.CategoryRequest{Name: "C", ParentID: &a.ID})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.create(t, "Parent", nil)
	a := f.create(t, "A", &parent.ID)
	b := f.create(t, "B", &parent.ID)
	c := f.create(t, "C", &parent.ID)
	_, err := f.repo.AddProduct(ctx, "widget", c.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, parent.ID), apperrors.ErrCategoryHasChildren)
	assert.ErrorIs(t, f.svc.Delete(ctx, c.ID), apperrors.ErrCategoryHasProducts)
	assert.ErrorIs(t, f.svc.Delete(ctx, "6f1c2a9e-3b5d-4c8e-9a7f-1d2e3f4a5b6c"), apperrors.ErrCategoryNotFound)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, []string{"B", "C"}, f.childNames(t, &parent.ID))

	stored, err := f.repo.GetCategory(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.DisplayOrder)
}

func TestNormalizeAll(t *testing.T) {
	repo := repository.NewMockRepository()
	ctx := context.Background()
	parent := &repository.Category{Name: "Parent", DisplayOrder: 7}
	require.NoError(t, repo.CreateCategory(ctx, parent))
	for _, c := range []*repository.Category{
		{Name: "b", ParentID: &parent.ID, DisplayOrder: 10},
		{Name: "A", ParentID: &parent.ID, DisplayOrder: 10},
		{Name: "c", ParentID: &parent.ID, DisplayOrder: 3},
	} {
		require.NoError(t, repo.CreateCategory(ctx, c))
	}
	svc := NewCategoryService(repo, nil, nil)

	require.NoError(t, svc.NormalizeAll(ctx))

	all, err := repo.GetAllCategories(ctx)
	require.NoError(t, err)
	orders := make(map[string]int)
	for _, c := range all {
		orders[c.Name] = c.DisplayOrder
	}
	assert.Equal(t, map[string]int{"Parent": 0, "c": 0, "A": 1, "b": 2}, orders)
}

type failingRepo struct {
	*repository.MockRepository
}

func (failingRepo) ProductCounts(context.Context) (map[string]int64, error) {
	return nil, errors.New("connection refused")
}

func TestTreeStorageFailure(t *testing.T) {
	svc := NewCategoryService(failingRepo{repository.NewMockRepository()}, nil, nil)

	_, err := svc.Tree(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInternalServer)
	assert.Equal(t, "An internal error occurred", err.Error())
}

// gatedRepo holds the first GetAllCategories call after it has read, until
// release is closed
type gatedRepo struct {
	*repository.MockRepository
	held    atomic.Bool
	armed   chan struct{}
	read    chan struct{}
	release chan struct{}
}

func (g *gatedRepo) GetAllCategories(ctx context.Context) ([]*repository.Category, error) {
	all, err := g.MockRepository.GetAllCategories(ctx)
	select {
	case <-g.armed:
		if g.held.CompareAndSwap(false, true) {
			close(g.read)
			<-g.release
		}
	default:
	}
	return all, err
}

func TestTreeLoadedBeforeWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &gatedRepo{
		MockRepository: repository.NewMockRepository(),
		armed:          make(chan struct{}),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewCategoryService(repo, cache.NewMemoryCache(), nil)
	a, err := svc.Create(ctx, models.CategoryRequest{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, models.CategoryRequest{Name: "B"})
	require.NoError(t, err)
	close(repo.armed)

	done := make(chan []*models.CategoryNode)
	go func() {
		nodes, _ := svc.Tree(ctx)
		done <- nodes
	}()

	<-repo.read
	require.NoError(t, svc.Reorder(ctx, models.ReorderRequest{OrderedCategoryIDs: []string{b.ID, a.ID}}))
	close(repo.release)

	stale := <-done
	require.Len(t, stale, 2)
	assert.Equal(t, "A", stale[0].Name, "the in-flight load read the old order")

	nodes, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "B", nodes[0].Name)
	assert.Equal(t, "A", nodes[1].Name)
}
