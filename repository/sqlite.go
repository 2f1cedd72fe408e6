package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/shopverse/category_service/migrations"
)

// MemoryPath keeps the SQLite database in memory for the life of the repository
const MemoryPath = ":memory:"

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRepository creates a new SQLite repository instance. An empty path
// stores the database under ~/.shopverse.
func NewSQLiteRepository(path string) *SQLiteRepository {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}

		dataDir := filepath.Join(homeDir, ".shopverse")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			dataDir = "."
		}
		path = filepath.Join(dataDir, "categories.db")
	}

	return &SQLiteRepository{dbPath: path}
}

// Initialize opens the SQLite database and runs the migrations
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	dsn := "file:" + r.dbPath + "?_foreign_keys=on"
	if r.dbPath == MemoryPath {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("error opening sqlite database: %w", err)
	}
	// one connection, otherwise every connection sees its own in-memory database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("error pinging sqlite database: %w", err)
	}

	if err := migrations.Up(db, migrations.SQLite); err != nil {
		_ = db.Close()
		return err
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateCategory inserts a new category
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *Category) error {
	if !validCategory(c) {
		return ErrInvalidInput
	}
	if c.ParentID != nil {
		exists, err := r.categoryExists(ctx, *c.ParentID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNodeNotFound
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, image_url, parent_id, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.ImageURL, c.ParentID, c.DisplayOrder, now, now,
	)
	if err != nil {
		return sqliteError("error creating category", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetCategory retrieves a category by ID
func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting category: %w", err)
	}
	return c, nil
}

// GetAllCategories retrieves every category
func (r *SQLiteRepository) GetAllCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories
		ORDER BY parent_id IS NOT NULL, parent_id, display_order, name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("error getting all categories: %w", err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

// UpdateCategory updates a category's properties
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *Category) error {
	if !validCategory(c) {
		return ErrInvalidInput
	}
	if c.ParentID != nil {
		exists, err := r.categoryExists(ctx, *c.ParentID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNodeNotFound
		}
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, description = ?, image_url = ?, parent_id = ?, display_order = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.ImageURL, c.ParentID, c.DisplayOrder, now, c.ID,
	)
	if err != nil {
		return sqliteError("error updating category", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	c.UpdatedAt = now
	return nil
}

// DeleteCategory deletes a single category
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return sqliteError("error deleting category", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// NameExists checks whether another category uses name
func (r *SQLiteRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE name = ? AND id <> ?)", name, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking category name: %w", err)
	}
	return exists, nil
}

// NextDisplayOrder returns the display order for a new last child of parentID
func (r *SQLiteRepository) NextDisplayOrder(ctx context.Context, parentID *string) (int, error) {
	var maxOrder sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(display_order) FROM categories WHERE parent_id IS ?", parentID,
	).Scan(&maxOrder)
	if err != nil {
		return 0, fmt.Errorf("error getting next display order: %w", err)
	}
	if maxOrder.Valid {
		return int(maxOrder.Int64) + 1, nil
	}
	return 0, nil
}

// SetDisplayOrder renumbers the given children of parentID in one transaction
func (r *SQLiteRepository) SetDisplayOrder(ctx context.Context, parentID *string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE categories SET display_order = ?, updated_at = ? WHERE id = ? AND parent_id IS ?")
	if err != nil {
		return fmt.Errorf("error preparing reorder: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, id := range orderedIDs {
		result, err := stmt.ExecContext(ctx, i, now, id, parentID)
		if err != nil {
			return fmt.Errorf("error reordering category %s: %w", id, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNodeNotFound
		}
	}

	return tx.Commit()
}

// ProductCounts returns the direct product count per category
func (r *SQLiteRepository) ProductCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT category_id, COUNT(*) FROM products WHERE category_id IS NOT NULL GROUP BY category_id")
	if err != nil {
		return nil, fmt.Errorf("error counting products: %w", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

// AddProduct stores a product under categoryID. Products are managed
// elsewhere; this exists for seeding and tests.
func (r *SQLiteRepository) AddProduct(ctx context.Context, name, categoryID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO products (id, name, category_id) VALUES (?, ?, ?)", id, name, categoryID)
	if err != nil {
		return "", sqliteError("error creating product", err)
	}
	return id, nil
}

func (r *SQLiteRepository) categoryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking category: %w", err)
	}
	return exists, nil
}

// sqliteError maps constraint violations onto the repository errors
func sqliteError(msg string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return ErrDuplicateName
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", msg, ErrInvalidInput)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
