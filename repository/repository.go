package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Category is one stored category row
type Category struct {
	ID           string
	Name         string
	Description  string
	ImageURL     string
	ParentID     *string // nil for root categories
	DisplayOrder int     // position among siblings, 0-based
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines the interface for category persistence.
type Repository interface {
	// Initialize opens the underlying storage and brings the schema up to date.
	Initialize(ctx context.Context) error

	// Cleanup releases the underlying storage.
	Cleanup(ctx context.Context) error

	// CreateCategory stores a new category. An empty ID is replaced by a new
	// UUID and the timestamps are set by the store.
	// Returns:
	//   - ErrNodeNotFound if ParentID does not exist
	//   - ErrDuplicateName if the name is already used
	CreateCategory(ctx context.Context, c *Category) error

	// GetCategory retrieves a category by its ID.
	// Returns ErrNodeNotFound if no category exists with the given ID.
	GetCategory(ctx context.Context, id string) (*Category, error)

	// GetAllCategories retrieves every category ordered by parent, display
	// order and name.
	GetAllCategories(ctx context.Context) ([]*Category, error)

	// UpdateCategory replaces name, description, image, parent and display
	// order of an existing category.
	// Returns:
	//   - ErrNodeNotFound if the category does not exist
	//   - ErrDuplicateName if the new name is used by another category
	UpdateCategory(ctx context.Context, c *Category) error

	// DeleteCategory deletes a single category. Children are not touched.
	// Returns ErrNodeNotFound if no category exists with the given ID.
	DeleteCategory(ctx context.Context, id string) error

	// NameExists reports whether another category than excludeID uses name.
	NameExists(ctx context.Context, name, excludeID string) (bool, error)

	// NextDisplayOrder returns max(display_order)+1 among the children of
	// parentID, or 0 when there are none.
	NextDisplayOrder(ctx context.Context, parentID *string) (int, error)

	// SetDisplayOrder assigns display order i to orderedIDs[i] in one
	// transaction. Every id must be a child of parentID (nil for roots).
	// Returns ErrNodeNotFound and changes nothing otherwise.
	SetDisplayOrder(ctx context.Context, parentID *string, orderedIDs []string) error

	// ProductCounts returns the number of products directly assigned to each
	// category. Categories without products may be missing from the map.
	ProductCounts(ctx context.Context) (map[string]int64, error)
}

// Common errors
var (
	// ErrNodeNotFound is returned when a requested category does not exist
	ErrNodeNotFound = errors.New("category not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateName is returned when a category name is already taken
	ErrDuplicateName = errors.New("category name already exists")
)

func validCategory(c *Category) bool {
	return c != nil && c.Name != "" && c.DisplayOrder >= 0
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

const categoryColumns = `id, name, description, image_url, parent_id, display_order, created_at, updated_at`

func scanCategory(scanner interface{ Scan(...any) error }) (*Category, error) {
	var c Category
	var parentID sql.NullString
	err := scanner.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL,
		&parentID, &c.DisplayOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return &c, nil
}

func scanCategories(rows *sql.Rows) ([]*Category, error) {
	categories := make([]*Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func scanCounts(rows *sql.Rows) (map[string]int64, error) {
	counts := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("error scanning product count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product counts: %w", err)
	}
	return counts, nil
}
