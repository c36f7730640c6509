package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributionWithNullBrand(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT category_id, brand_id FROM products WHERE id = \?`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "brand_id"}).AddRow(4, nil))

	attr, err := NewSQLCatalog(db).Attribution(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, attr.CategoryID)
	assert.Equal(t, int64(4), *attr.CategoryID)
	assert.Nil(t, attr.BrandID)
}

func TestAttributionMissingProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id = \?`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "brand_id"}))

	_, err = NewSQLCatalog(db).Attribution(context.Background(), 10)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVariantNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM product_variants WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewSQLCatalog(db).Variant(context.Background(), 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCategorySlugsName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO categories \(name, slug, created_at, updated_at\)`).
		WithArgs("Home & Kitchen", "home-and-kitchen", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(6, 1))

	category, err := NewSQLCatalog(db).CreateCategory(context.Background(), "Home & Kitchen")
	require.NoError(t, err)
	assert.Equal(t, int64(6), category.ID)
	assert.Equal(t, "home-and-kitchen", category.Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBrandReusesExistingSlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO brands .+ ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID\(id\)`).
		WithArgs("Acme", "acme", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 2))

	brand, err := NewSQLCatalog(db).CreateBrand(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(2), brand.ID)
}
