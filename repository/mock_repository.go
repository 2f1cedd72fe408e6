package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRepository implements Repository in memory. It backs the "memory"
// storage driver and the service tests.
type MockRepository struct {
	categories map[string]*Category
	products   map[string]string // product id -> category id
	mu         sync.RWMutex
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		categories: make(map[string]*Category),
		products:   make(map[string]string),
	}
}

// Initialize performs any necessary setup
func (m *MockRepository) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops every stored category and product
func (m *MockRepository) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = make(map[string]*Category)
	m.products = make(map[string]string)
	return nil
}

// CreateCategory stores a copy of c
func (m *MockRepository) CreateCategory(ctx context.Context, c *Category) error {
	if !validCategory(c) {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ParentID != nil {
		if _, ok := m.categories[*c.ParentID]; !ok {
			return ErrNodeNotFound
		}
	}
	if m.nameTaken(c.Name, "") {
		return ErrDuplicateName
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := m.categories[c.ID]; ok {
		return ErrInvalidInput
	}

	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.categories[c.ID] = copyCategory(c)
	return nil
}

// GetCategory retrieves a copy of the category
func (m *MockRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return copyCategory(c), nil
}

// GetAllCategories retrieves copies of all categories, roots first, then by
// parent, display order and name
func (m *MockRepository) GetAllCategories(ctx context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Category, 0, len(m.categories))
	for _, c := range m.categories {
		result = append(result, copyCategory(c))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if (a.ParentID == nil) != (b.ParentID == nil) {
			return a.ParentID == nil
		}
		if a.ParentID != nil && *a.ParentID != *b.ParentID {
			return *a.ParentID < *b.ParentID
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return result, nil
}

// UpdateCategory replaces the stored category with a copy of c
func (m *MockRepository) UpdateCategory(ctx context.Context, c *Category) error {
	if !validCategory(c) {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.categories[c.ID]
	if !ok {
		return ErrNodeNotFound
	}
	if c.ParentID != nil {
		if _, ok := m.categories[*c.ParentID]; !ok {
			return ErrNodeNotFound
		}
	}
	if m.nameTaken(c.Name, c.ID) {
		return ErrDuplicateName
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	m.categories[c.ID] = copyCategory(c)
	return nil
}

// DeleteCategory deletes a single category
func (m *MockRepository) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return ErrNodeNotFound
	}
	for _, c := range m.categories {
		if c.ParentID != nil && *c.ParentID == id {
			return ErrInvalidInput
		}
	}
	for _, categoryID := range m.products {
		if categoryID == id {
			return ErrInvalidInput
		}
	}
	delete(m.categories, id)
	return nil
}

// NameExists checks whether another category uses name
func (m *MockRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nameTaken(name, excludeID), nil
}

// NextDisplayOrder returns the display order for a new last child of parentID
func (m *MockRepository) NextDisplayOrder(ctx context.Context, parentID *string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	next := 0
	for _, c := range m.categories {
		if sameParent(c.ParentID, parentID) && c.DisplayOrder >= next {
			next = c.DisplayOrder + 1
		}
	}
	return next, nil
}

// SetDisplayOrder renumbers the given children of parentID. Nothing changes
// when one of them is not a child of parentID.
func (m *MockRepository) SetDisplayOrder(ctx context.Context, parentID *string, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range orderedIDs {
		c, ok := m.categories[id]
		if !ok || !sameParent(c.ParentID, parentID) {
			return ErrNodeNotFound
		}
	}
	now := time.Now().UTC()
	for i, id := range orderedIDs {
		m.categories[id].DisplayOrder = i
		m.categories[id].UpdatedAt = now
	}
	return nil
}

// ProductCounts returns the direct product count per category
func (m *MockRepository) ProductCounts(ctx context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, categoryID := range m.products {
		counts[categoryID]++
	}
	return counts, nil
}

// AddProduct stores a product under categoryID
func (m *MockRepository) AddProduct(ctx context.Context, name, categoryID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[categoryID]; !ok {
		return "", ErrNodeNotFound
	}
	id := uuid.NewString()
	m.products[id] = categoryID
	return id, nil
}

func (m *MockRepository) nameTaken(name, excludeID string) bool {
	for id, c := range m.categories {
		if id != excludeID && c.Name == name {
			return true
		}
	}
	return false
}

func copyCategory(c *Category) *Category {
	out := *c
	if c.ParentID != nil {
		pid := *c.ParentID
		out.ParentID = &pid
	}
	return &out
}
