package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	parentUUID = "6f1c2a9e-3b5d-4c8e-9a7f-1d2e3f4a5b6c"
	childUUID  = "8a2b3c4d-5e6f-4a1b-8c9d-0e1f2a3b4c5d"
)

func newMockDBAndRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresRepository) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")
	return db, mock, NewPostgresRepositoryWithDB(db)
}

func categoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "image_url", "parent_id", "display_order", "created_at", "updated_at"})
}

func TestPostgresRepository_CreateCategory(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	parent := parentUUID

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)")).
		WithArgs(parentUUID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories (id, name, description, image_url, parent_id, display_order)")).
		WithArgs(sqlmock.AnyArg(), "Phones", "", "", parentUUID, 3).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	c := &Category{Name: "Phones", ParentID: &parent, DisplayOrder: 3}
	err := repo.CreateCategory(context.Background(), c)

	require.NoError(t, err)
	assert.Len(t, c.ID, 36)
	assert.WithinDuration(t, now, c.CreatedAt, time.Second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateCategory_NameExists(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "categories_name_key"})

	err := repo.CreateCategory(context.Background(), &Category{Name: "Phones"})

	assert.ErrorIs(t, err, ErrDuplicateName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateCategory_ParentMissing(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)")).
		WithArgs(parentUUID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	parent := parentUUID
	err := repo.CreateCategory(context.Background(), &Category{Name: "Phones", ParentID: &parent})

	assert.ErrorIs(t, err, ErrNodeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetCategory(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, image_url, parent_id, display_order, created_at, updated_at FROM categories WHERE id = $1")).
		WithArgs(childUUID).
		WillReturnRows(categoryRows().AddRow(childUUID, "Phones", "desc", "", parentUUID, 2, now, now))

	c, err := repo.GetCategory(context.Background(), childUUID)

	require.NoError(t, err)
	assert.Equal(t, "Phones", c.Name)
	assert.Equal(t, 2, c.DisplayOrder)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, parentUUID, *c.ParentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetCategory_NotFound(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT .+ FROM categories WHERE id = \\$1").
		WithArgs(childUUID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM categories WHERE id = \\$1").
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})

	_, err := repo.GetCategory(context.Background(), childUUID)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = repo.GetCategory(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetAllCategories(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM categories ORDER BY parent_id NULLS FIRST, display_order, LOWER\\(name\\)").
		WillReturnRows(categoryRows().
			AddRow(parentUUID, "Electronics", "", "", nil, 0, now, now).
			AddRow(childUUID, "Phones", "", "", parentUUID, 0, now, now))

	all, err := repo.GetAllCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[0].ParentID)
	assert.Equal(t, parentUUID, *all[1].ParentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateCategory_NotFound(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE categories")).
		WithArgs("Renamed", "", "", nil, 0, childUUID).
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdateCategory(context.Background(), &Category{ID: childUUID, Name: "Renamed"})

	assert.ErrorIs(t, err, ErrNodeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteCategory(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs(childUUID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs(childUUID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs(parentUUID).
		WillReturnError(&pq.Error{Code: "23503", Detail: "still referenced"})

	ctx := context.Background()
	require.NoError(t, repo.DeleteCategory(ctx, childUUID))
	assert.ErrorIs(t, repo.DeleteCategory(ctx, childUUID), ErrNodeNotFound)
	assert.ErrorIs(t, repo.DeleteCategory(ctx, parentUUID), ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_NextDisplayOrder(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(display_order) FROM categories WHERE parent_id IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(display_order) FROM categories WHERE parent_id = $1")).
		WithArgs(parentUUID).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))

	ctx := context.Background()
	next, err := repo.NextDisplayOrder(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	parent := parentUUID
	next, err = repo.NextDisplayOrder(ctx, &parent)
	require.NoError(t, err)
	assert.Equal(t, 5, next)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetDisplayOrder(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	parent := parentUUID
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("UPDATE categories SET display_order = $1, updated_at = $2"))
	prep.ExpectExec().WithArgs(0, sqlmock.AnyArg(), childUUID, parentUUID).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(1, sqlmock.AnyArg(), "c3", parentUUID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetDisplayOrder(context.Background(), &parent, []string{childUUID, "c3"})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetDisplayOrder_RollsBack(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("UPDATE categories SET display_order = $1"))
	prep.ExpectExec().WithArgs(0, sqlmock.AnyArg(), childUUID, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(1, sqlmock.AnyArg(), parentUUID, nil).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetDisplayOrder(context.Background(), nil, []string{childUUID, parentUUID})

	assert.ErrorIs(t, err, ErrNodeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ProductCounts(t *testing.T) {
	db, mock, repo := newMockDBAndRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT category_id::text, COUNT\\(\\*\\) FROM products").
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "count"}).
			AddRow(childUUID, 7).
			AddRow(parentUUID, 1))

	counts, err := repo.ProductCounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{childUUID: 7, parentUUID: 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresError(t *testing.T) {
	plain := errors.New("connection reset")
	err := postgresError("error creating category", plain)
	assert.ErrorIs(t, err, plain)
	assert.Contains(t, err.Error(), "error creating category")

	otherUnique := &pq.Error{Code: "23505", Constraint: "categories_pkey"}
	assert.NotErrorIs(t, postgresError("x", otherUnique), ErrDuplicateName)
}
