package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/taptosell-checkout/internal/store"
)

func mysqlService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(store.NewMySQL(db), time.Second, nil), mock
}

func widgetLine(qty int) Line {
	return Line{CartItemID: 9, ProductID: widget, SellerID: seller, UnitPrice: money("12.50"), Quantity: qty, ImageRef: "img.jpg"}
}

func cartRow(qty int, price string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"product_id", "variant_id", "seller_id", "price", "quantity"}).
		AddRow(widget, nil, seller, price, qty)
}

func expectLockAndHeader(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, id FROM products WHERE id IN \(\?\) ORDER BY id FOR UPDATE`).
		WithArgs(widget).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(widget, widget))
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectQuery(`SELECT category_id, brand_id FROM products WHERE id = \?`).
		WithArgs(widget).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "brand_id"}).AddRow(3, nil))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(5, 1))
}

func TestMySQLCheckoutStatementOrder(t *testing.T) {
	svc, mock := mysqlService(t)

	expectLockAndHeader(mock)
	mock.ExpectExec(`UPDATE products SET stock_quantity = stock_quantity - \?, updated_at = \? WHERE id = \? AND stock_quantity >= \?`).
		WithArgs(2, sqlmock.AnyArg(), widget, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO product_analytics`).
		WithArgs(widget, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO seller_performance`).
		WithArgs(seller, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM cart_items\s+WHERE id = \? AND user_id = \?\s+FOR UPDATE`).
		WithArgs(int64(9), buyer).
		WillReturnRows(cartRow(2, "12.50"))
	mock.ExpectExec(`DELETE FROM cart_items WHERE id = \? AND user_id = \?`).
		WithArgs(int64(9), buyer).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO event_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := svc.Checkout(context.Background(), request(buyer, widgetLine(2)))
	require.NoError(t, err)
	assert.Equal(t, int64(41), res.OrderID)
	assert.True(t, money("25").Equal(res.TotalAmount))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLForgedLineRollsBack(t *testing.T) {
	svc, mock := mysqlService(t)

	expectLockAndHeader(mock)
	mock.ExpectExec(`UPDATE products SET stock_quantity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO product_analytics`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO seller_performance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM cart_items\s+WHERE id = \? AND user_id = \?\s+FOR UPDATE`).
		WithArgs(int64(9), buyer).
		WillReturnRows(cartRow(1, "12.50"))
	mock.ExpectRollback()

	_, err := svc.Checkout(context.Background(), request(buyer, widgetLine(2)))
	ce := requireKind(t, err, KindInvalidRequest)
	assert.Equal(t, "cart_item", ce.Entity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLFloorCheckRollsBack(t *testing.T) {
	svc, mock := mysqlService(t)

	expectLockAndHeader(mock)
	mock.ExpectExec(`UPDATE products SET stock_quantity`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT stock_quantity FROM products WHERE id = \?`).
		WithArgs(widget).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Checkout(context.Background(), request(buyer, widgetLine(2)))
	ce := requireKind(t, err, KindInsufficientStock)
	assert.Equal(t, 1, ce.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDeadlockIsRetryable(t *testing.T) {
	svc, mock := mysqlService(t)

	expectLockAndHeader(mock)
	mock.ExpectExec(`UPDATE products SET stock_quantity`).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	_, err := svc.Checkout(context.Background(), request(buyer, widgetLine(1)))
	ce := requireKind(t, err, KindStorageFailure)
	assert.True(t, ce.Retryable())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDuplicateKeyReplaysWinner(t *testing.T) {
	svc, mock := mysqlService(t)
	req := request(buyer, widgetLine(1))
	req.IdempotencyKey = "k-1"
	cols := []string{"id", "user_id", "address_id", "total_amount", "payment_method", "idempotency_key", "created_at", "updated_at"}
	now := time.Now()

	mock.ExpectQuery(`FROM orders WHERE user_id = \? AND idempotency_key = \?`).
		WithArgs(buyer, "k-1").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(widget, widget))
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()
	mock.ExpectQuery(`FROM orders WHERE user_id = \? AND idempotency_key = \?`).
		WithArgs(buyer, "k-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(77, buyer, nil, "12.50", "card", "k-1", now, now))

	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, int64(77), res.OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}
