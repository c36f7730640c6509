package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (*SQLLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLLedger(db), mock
}

func TestCanonicalOrdersProductsFirstAndDedups(t *testing.T) {
	refs := []Ref{
		VariantRef(9, 3),
		ProductRef(7),
		ProductRef(3),
		VariantRef(2, 7),
		ProductRef(7),
		VariantRef(9, 3),
	}

	got := Canonical(refs)
	assert.Equal(t, []Ref{
		ProductRef(3),
		ProductRef(7),
		VariantRef(2, 7),
		VariantRef(9, 3),
	}, got)
}

func TestDecrementProductSuccess(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE products SET stock_quantity = stock_quantity - \?, updated_at = \? WHERE id = \? AND stock_quantity >= \?`).
		WithArgs(2, sqlmock.AnyArg(), int64(11), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.Decrement(context.Background(), ProductRef(11), 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementInsufficientStockReportsAvailable(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE products SET stock_quantity`).
		WithArgs(2, sqlmock.AnyArg(), int64(11), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT stock_quantity FROM products WHERE id = \?`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(1))

	err := ledger.Decrement(context.Background(), ProductRef(11), 2)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, ProductRef(11), stockErr.Ref)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementVariantMissingIsNotFound(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(`UPDATE product_variants SET stock_quantity = stock_quantity - \?, updated_at = \? WHERE id = \? AND product_id = \? AND stock_quantity >= \?`).
		WithArgs(1, sqlmock.AnyArg(), int64(5), int64(11), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT stock_quantity FROM product_variants WHERE id = \? AND product_id = \?`).
		WithArgs(int64(5), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}))

	err := ledger.Decrement(context.Background(), VariantRef(5, 11), 1)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, VariantRef(5, 11), nf.Ref)
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	ledger, mock := newMockLedger(t)

	require.Error(t, ledger.Decrement(context.Background(), ProductRef(1), 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementPropagatesStorageError(t *testing.T) {
	ledger, mock := newMockLedger(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`UPDATE products`).WillReturnError(boom)

	err := ledger.Decrement(context.Background(), ProductRef(1), 1)
	require.ErrorIs(t, err, boom)
}

func TestLockSelectsForUpdateInCanonicalOrder(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery(`SELECT id, id FROM products WHERE id IN \(\?, \?\) ORDER BY id FOR UPDATE`).
		WithArgs(int64(3), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(3, 3).AddRow(8, 8))
	mock.ExpectQuery(`SELECT id, product_id FROM product_variants WHERE id IN \(\?\) ORDER BY id FOR UPDATE`).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id"}).AddRow(21, 8))

	err := ledger.Lock(context.Background(), []Ref{ProductRef(8), VariantRef(21, 8), ProductRef(3), ProductRef(8)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDetectsMissingProduct(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery(`FROM products WHERE id IN`).
		WithArgs(int64(3), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(3, 3))

	err := ledger.Lock(context.Background(), []Ref{ProductRef(3), ProductRef(8)})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ProductRef(8), nf.Ref)
}

func TestLockDetectsVariantOfAnotherProduct(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery(`FROM products WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(3, 3))
	mock.ExpectQuery(`FROM product_variants WHERE id IN`).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id"}).AddRow(21, 99))

	err := ledger.Lock(context.Background(), []Ref{ProductRef(3), VariantRef(21, 3)})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindVariant, nf.Ref.Kind)
}
