package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopverse/category_service/config"
	"github.com/shopverse/category_service/migrations"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db     *sql.DB
	config *config.DatabaseConfig
}

// NewPostgresRepository creates a new PostgreSQL repository from the database
// settings of cfgProvider
func NewPostgresRepository(ctx context.Context, cfgProvider config.Provider) (*PostgresRepository, error) {
	cfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config: %w", err)
	}

	return &PostgresRepository{
		config: cfg,
	}, nil
}

// NewPostgresRepositoryWithDB wraps an already opened database. Initialize
// only applies migrations in that case.
func NewPostgresRepositoryWithDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Initialize connects to PostgreSQL and runs the migrations
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	db := r.db
	if db == nil {
		var err error
		db, err = sql.Open("postgres", r.config.DSN())
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := migrations.Up(db, migrations.Postgres); err != nil {
		_ = db.Close()
		return err
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateCategory inserts a new category
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *Category) error {
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

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, name, description, image_url, parent_id, display_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description, c.ImageURL, c.ParentID, c.DisplayOrder,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return postgresError("error creating category", err)
	}
	return nil
}

// GetCategory retrieves a category by ID
func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, postgresError("error getting category", err)
	}
	return c, nil
}

// GetAllCategories retrieves every category
func (r *PostgresRepository) GetAllCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY parent_id NULLS FIRST, display_order, LOWER(name)`)
	if err != nil {
		return nil, fmt.Errorf("error getting all categories: %w", err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

// UpdateCategory updates a category's properties
func (r *PostgresRepository) UpdateCategory(ctx context.Context, c *Category) error {
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

	err := r.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $1, description = $2, image_url = $3, parent_id = $4, display_order = $5
		WHERE id = $6
		RETURNING updated_at`,
		c.Name, c.Description, c.ImageURL, c.ParentID, c.DisplayOrder, c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNodeNotFound
		}
		return postgresError("error updating category", err)
	}
	return nil
}

// DeleteCategory deletes a single category
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return postgresError("error deleting category", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// NameExists checks whether another category uses name
func (r *PostgresRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE name = $1 AND id::text <> $2)",
		name, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking category name: %w", err)
	}
	return exists, nil
}

// NextDisplayOrder returns the display order for a new last child of parentID
func (r *PostgresRepository) NextDisplayOrder(ctx context.Context, parentID *string) (int, error) {
	var maxOrder sql.NullInt64
	var err error
	if parentID == nil {
		err = r.db.QueryRowContext(ctx,
			"SELECT MAX(display_order) FROM categories WHERE parent_id IS NULL").Scan(&maxOrder)
	} else {
		err = r.db.QueryRowContext(ctx,
			"SELECT MAX(display_order) FROM categories WHERE parent_id = $1", *parentID).Scan(&maxOrder)
	}
	if err != nil {
		return 0, fmt.Errorf("error getting next display order: %w", err)
	}
	if maxOrder.Valid {
		return int(maxOrder.Int64) + 1, nil
	}
	return 0, nil
}

// SetDisplayOrder renumbers the given children of parentID in one transaction
func (r *PostgresRepository) SetDisplayOrder(ctx context.Context, parentID *string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE categories SET display_order = $1, updated_at = $2
		WHERE id = $3 AND parent_id IS NOT DISTINCT FROM $4::uuid`)
	if err != nil {
		return fmt.Errorf("error preparing reorder: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i, id := range orderedIDs {
		result, err := stmt.ExecContext(ctx, i, now, id, parentID)
		if err != nil {
			return postgresError("error reordering category "+id, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("error getting rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNodeNotFound
		}
	}

	return tx.Commit()
}

// ProductCounts returns the direct product count per category
func (r *PostgresRepository) ProductCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id::text, COUNT(*) FROM products
		WHERE category_id IS NOT NULL
		GROUP BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("error counting products: %w", err)
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (r *PostgresRepository) categoryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		if err = postgresError("error checking category", err); errors.Is(err, ErrNodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// postgresError maps constraint violations onto the repository errors
func postgresError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "categories_name_key" {
				return ErrDuplicateName
			}
		case "22P02": // invalid_text_representation, an id that is not a uuid
			return ErrNodeNotFound
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w: %s", msg, ErrInvalidInput, pqErr.Detail)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
