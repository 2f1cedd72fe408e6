// Package service holds the authoritative category rules: tree assembly,
// sibling reordering and the create, update and delete checks.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopverse/category_service/apperrors"
	"github.com/shopverse/category_service/cache"
	"github.com/shopverse/category_service/models"
	"github.com/shopverse/category_service/repository"
	"github.com/shopverse/category_service/tree"
)

// CategoryService implements the admin category operations on top of a
// repository, caching the assembled tree.
type CategoryService struct {
	repo  repository.Repository
	cache cache.CacheProvider
	log   *zap.SugaredLogger

	// serializes mutations so sibling checks and writes do not interleave
	mu sync.Mutex
	// bumped by every write; a tree loaded under an older value is not cached
	cacheGen uint64
}

// NewCategoryService creates the service. A nil cache disables caching and a
// nil logger discards output.
func NewCategoryService(repo repository.Repository, c cache.CacheProvider, log *zap.SugaredLogger) *CategoryService {
	if c == nil {
		c = cache.NoopCache{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CategoryService{repo: repo, cache: c, log: log}
}

// Tree returns the admin category forest with depths, parent names and
// product counts filled in
func (s *CategoryService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	if cached, found := s.cache.GetTree(ctx); found {
		return cached, nil
	}

	s.mu.Lock()
	gen := s.cacheGen
	s.mu.Unlock()

	var (
		categories []*repository.Category
		counts     map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.repo.GetAllCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.repo.ProductCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("loading categories: %w", err))
	}

	nodes := BuildTree(categories, counts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.cacheGen {
		s.cache.SetTree(ctx, nodes)
	}
	return nodes, nil
}

// BuildTree assembles stored categories into a normalized forest. Siblings
// are ordered by display order, then case-insensitively by name. Categories
// whose parent is missing are left out.
func BuildTree(categories []*repository.Category, counts map[string]int64) []*models.CategoryNode {
	byID := make(map[string]*models.CategoryNode, len(categories))
	for _, c := range categories {
		byID[c.ID] = toNode(c, counts[c.ID])
	}

	roots := make([]*models.CategoryNode, 0)
	for _, c := range categories {
		node := byID[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := byID[*c.ParentID]
		if !ok {
			continue
		}
		node.ParentName = parent.Name
		parent.AddChild(node)
	}

	sortSiblings(roots)
	return tree.Normalize(roots)
}

func sortSiblings(nodes []*models.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	for _, n := range nodes {
		sortSiblings(n.Children)
	}
}

func toNode(c *repository.Category, productCount int64) *models.CategoryNode {
	node := models.NewCategoryNode(c.ID, c.Name)
	node.Description = c.Description
	node.ImageURL = c.ImageURL
	if c.ParentID != nil {
		pid := *c.ParentID
		node.ParentID = &pid
	}
	node.DisplayOrder = c.DisplayOrder
	node.DirectCount = productCount
	node.TotalCount = productCount
	node.CreatedAt = c.CreatedAt
	node.UpdatedAt = c.UpdatedAt
	return node
}

// Reorder replaces the display order of one sibling list. The submitted ids
// must be exactly the current children of the parent. An empty sibling list
// is left alone.
func (s *CategoryService) Reorder(ctx context.Context, req models.ReorderRequest) error {
	if err := req.Validate(); err != nil {
		return invalidInput(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID != nil {
		if err := s.requireParent(ctx, *req.ParentID); err != nil {
			return err
		}
	}

	siblings, err := s.children(ctx, req.ParentID)
	if err != nil {
		return err
	}
	if len(siblings) == 0 {
		return nil
	}
	if !sameMembers(siblings, req.OrderedCategoryIDs) {
		return apperrors.ErrInvalidReorder
	}

	if err := s.repo.SetDisplayOrder(ctx, req.ParentID, req.OrderedCategoryIDs); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return apperrors.Wrap(apperrors.ErrInvalidReorder, err)
		}
		return internal("reordering categories", err)
	}

	s.invalidate(ctx)
	s.log.Infow("categories reordered", "parent", parentLabel(req.ParentID), "count", len(req.OrderedCategoryIDs))
	return nil
}

// Create adds a category at the end of its sibling list
func (s *CategoryService) Create(ctx context.Context, req models.CategoryRequest) (*models.CategoryNode, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUniqueName(ctx, req.Name, ""); err != nil {
		return nil, err
	}
	parentName := ""
	if req.ParentID != nil {
		parent, err := s.parent(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		parentName = parent.Name
	}

	order, err := s.repo.NextDisplayOrder(ctx, req.ParentID)
	if err != nil {
		return nil, internal("computing display order", err)
	}

	c := &repository.Category{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		ParentID:     req.ParentID,
		DisplayOrder: order,
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, s.mutationError("creating category", err)
	}

	s.invalidate(ctx)
	s.log.Infow("category created", "id", c.ID, "name", c.Name, "parent", parentLabel(c.ParentID))

	node := toNode(c, 0)
	node.ParentName = parentName
	return node, nil
}

// Update changes a category. Moving it under another parent appends it to
// the new sibling list and closes the gap in the old one.
func (s *CategoryService) Update(ctx context.Context, id string, req models.CategoryRequest) (*models.CategoryNode, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, internal("loading category", err)
	}
	if err := s.requireUniqueName(ctx, req.Name, id); err != nil {
		return nil, err
	}

	parentName := ""
	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, apperrors.ErrSelfParent
		}
		parent, err := s.parent(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.requireNotDescendant(ctx, id, parent.ID); err != nil {
			return nil, err
		}
		parentName = parent.Name
	}

	oldParent := existing.ParentID
	moved := !sameParentID(oldParent, req.ParentID)

	updated := *existing
	updated.Name = req.Name
	updated.Description = req.Description
	updated.ImageURL = req.ImageURL
	updated.ParentID = req.ParentID
	if moved {
		if updated.DisplayOrder, err = s.repo.NextDisplayOrder(ctx, req.ParentID); err != nil {
			return nil, internal("computing display order", err)
		}
	}

	if err := s.repo.UpdateCategory(ctx, &updated); err != nil {
		return nil, s.mutationError("updating category", err)
	}
	defer s.invalidate(ctx)
	if moved {
		if err := s.renumber(ctx, oldParent); err != nil {
			return nil, err
		}
	}

	s.log.Infow("category updated", "id", id, "moved", moved, "parent", parentLabel(updated.ParentID))

	counts, err := s.repo.ProductCounts(ctx)
	if err != nil {
		return nil, internal("counting products", err)
	}
	node := toNode(&updated, counts[id])
	node.ParentName = parentName
	return node, nil
}

// Delete removes a category without children or products and closes the gap
// in its sibling list
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return internal("loading category", err)
	}

	children, err := s.children(ctx, &id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return apperrors.ErrCategoryHasChildren
	}
	counts, err := s.repo.ProductCounts(ctx)
	if err != nil {
		return internal("counting products", err)
	}
	if counts[id] > 0 {
		return apperrors.ErrCategoryHasProducts
	}

	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return s.mutationError("deleting category", err)
	}
	defer s.invalidate(ctx)
	if err := s.renumber(ctx, existing.ParentID); err != nil {
		return err
	}

	s.log.Infow("category deleted", "id", id, "name", existing.Name)
	return nil
}

// NormalizeAll renumbers every sibling list to 0..n-1, keeping the current
// order. Lists that are already dense are not written.
func (s *CategoryService) NormalizeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.GetAllCategories(ctx)
	if err != nil {
		return internal("loading categories", err)
	}

	groups := make(map[string][]*repository.Category)
	parents := make(map[string]*string)
	for _, c := range all {
		key := parentLabel(c.ParentID)
		groups[key] = append(groups[key], c)
		parents[key] = c.ParentID
	}

	fixed := 0
	defer func() {
		if fixed > 0 {
			s.invalidate(ctx)
		}
	}()
	for key, siblings := range groups {
		changed, err := s.writeOrder(ctx, parents[key], siblings)
		if err != nil {
			return err
		}
		if changed {
			fixed++
		}
	}

	s.log.Infow("category display order normalized", "siblingLists", len(groups), "renumbered", fixed)
	return nil
}

// invalidate drops the cached tree and keeps in-flight loads from caching
// theirs. The caller holds s.mu.
func (s *CategoryService) invalidate(ctx context.Context) {
	s.cacheGen++
	s.cache.InvalidateCache(ctx)
}

// renumber rewrites the children of parentID as 0..n-1 in their current order
func (s *CategoryService) renumber(ctx context.Context, parentID *string) error {
	siblings, err := s.children(ctx, parentID)
	if err != nil {
		return err
	}
	_, err = s.writeOrder(ctx, parentID, siblings)
	return err
}

func (s *CategoryService) writeOrder(ctx context.Context, parentID *string, siblings []*repository.Category) (bool, error) {
	sort.SliceStable(siblings, func(i, j int) bool {
		if siblings[i].DisplayOrder != siblings[j].DisplayOrder {
			return siblings[i].DisplayOrder < siblings[j].DisplayOrder
		}
		return strings.ToLower(siblings[i].Name) < strings.ToLower(siblings[j].Name)
	})

	dense := true
	ids := make([]string, len(siblings))
	for i, c := range siblings {
		ids[i] = c.ID
		if c.DisplayOrder != i {
			dense = false
		}
	}
	if dense {
		return false, nil
	}
	if err := s.repo.SetDisplayOrder(ctx, parentID, ids); err != nil {
		return false, internal("renumbering categories", err)
	}
	return true, nil
}

func (s *CategoryService) children(ctx context.Context, parentID *string) ([]*repository.Category, error) {
	all, err := s.repo.GetAllCategories(ctx)
	if err != nil {
		return nil, internal("loading categories", err)
	}
	out := make([]*repository.Category, 0)
	for _, c := range all {
		if sameParentID(c.ParentID, parentID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CategoryService) parent(ctx context.Context, id string) (*repository.Category, error) {
	parent, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return nil, apperrors.ErrParentNotFound
		}
		return nil, internal("loading parent category", err)
	}
	return parent, nil
}

func (s *CategoryService) requireParent(ctx context.Context, id string) error {
	_, err := s.parent(ctx, id)
	return err
}

func (s *CategoryService) requireUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.NameExists(ctx, name, excludeID)
	if err != nil {
		return internal("checking category name", err)
	}
	if exists {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

// requireNotDescendant walks up from newParentID and fails if it passes id
func (s *CategoryService) requireNotDescendant(ctx context.Context, id, newParentID string) error {
	all, err := s.repo.GetAllCategories(ctx)
	if err != nil {
		return internal("loading categories", err)
	}
	parentOf := make(map[string]*string, len(all))
	for _, c := range all {
		parentOf[c.ID] = c.ParentID
	}

	visited := make(map[string]struct{})
	stack := []string{newParentID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == id {
			return apperrors.ErrDescendantParent
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if p := parentOf[current]; p != nil {
			stack = append(stack, *p)
		}
	}
	return nil
}

func (s *CategoryService) mutationError(action string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateName):
		return apperrors.ErrDuplicateCategory
	case errors.Is(err, repository.ErrNodeNotFound):
		return apperrors.Wrap(apperrors.ErrCategoryNotFound, err)
	default:
		return internal(action, err)
	}
}

func sameMembers(siblings []*repository.Category, ids []string) bool {
	if len(siblings) != len(ids) {
		return false
	}
	want := make(map[string]struct{}, len(siblings))
	for _, c := range siblings {
		want[c.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := want[id]; !ok {
			return false
		}
		// each id may appear once
		delete(want, id)
	}
	return len(want) == 0
}

func sameParentID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func parentLabel(id *string) string {
	if id == nil {
		return "root"
	}
	return *id
}

func internal(action string, err error) error {
	return apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("%s: %w", action, err))
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidInput, strings.Join(msgs, "; ")), err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s) or character(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid":
		return field + " must be a valid id"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
