package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/models"
	"github.com/01moynul/taptosell-checkout/internal/orders"
)

func seeded() *Store {
	s := New()
	s.PutProduct(models.Product{ID: 1, SellerID: 7, Price: decimal.RequireFromString("5.00"), StockQuantity: 10})
	s.PutVariant(models.ProductVariant{ID: 11, ProductID: 1, Price: decimal.RequireFromString("6.00"), StockQuantity: 3})
	return s
}

func TestDecrementFloor(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().Decrement(ctx, inventory.ProductRef(1), 6))

	err = tx.Ledger().Decrement(ctx, inventory.ProductRef(1), 5)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4, insufficient.Available)

	require.NoError(t, tx.Commit())
	assert.Equal(t, 4, s.ProductStock(1))
}

func TestRollbackDiscardsEverything(t *testing.T) {
	s := seeded()
	item := models.CartItem{UserID: 2, ProductID: 1, SellerID: 7, Price: decimal.RequireFromString("5.00"), Quantity: 1}
	item.ID = s.PutCartItem(item)
	before := s.Snapshot()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().Decrement(ctx, inventory.ProductRef(1), 1))
	require.NoError(t, tx.Orders().Create(ctx, &models.Order{UserID: 2, TotalAmount: decimal.RequireFromString("5.00")}))
	require.NoError(t, tx.Analytics().RecordSale(ctx, analytics.ScopeProduct, 1, 1, decimal.RequireFromString("5.00")))
	require.NoError(t, tx.Events().Append(ctx, []models.EventLog{{EventType: models.EventTypePurchase, ProductID: 1}}))
	require.NoError(t, tx.Cart().Consume(ctx, 2, item))
	require.NoError(t, tx.Rollback())

	assert.Equal(t, before, s.Snapshot())
	require.NoError(t, tx.Rollback())
}

func TestCommitAppliesBufferedWrites(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().Lock(ctx, []inventory.Ref{inventory.VariantRef(11, 1), inventory.ProductRef(1)}))
	require.NoError(t, tx.Ledger().Decrement(ctx, inventory.VariantRef(11, 1), 2))
	require.NoError(t, tx.Analytics().RecordSale(ctx, analytics.ScopeVariant, 11, 2, decimal.RequireFromString("12.00")))
	require.NoError(t, tx.Analytics().RecordSale(ctx, analytics.ScopeVariant, 11, 1, decimal.RequireFromString("6.00")))
	require.NoError(t, tx.Events().Append(ctx, []models.EventLog{{ProductID: 1}, {ProductID: 1}}))
	require.NoError(t, tx.Commit())

	assert.Equal(t, 1, s.VariantStock(11))
	agg, err := s.Analytics().Get(ctx, analytics.ScopeVariant, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.SalesCount)
	assert.True(t, decimal.RequireFromString("18").Equal(agg.TotalRevenue))

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, int64(2), events[1].ID)

	require.Error(t, tx.Commit())
}

func TestLockRejectsForeignVariant(t *testing.T) {
	s := seeded()
	s.PutProduct(models.Product{ID: 2, SellerID: 7, Price: decimal.RequireFromString("1.00"), StockQuantity: 1})
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.Ledger().Lock(ctx, []inventory.Ref{inventory.ProductRef(2), inventory.VariantRef(11, 2)})
	var notFound *inventory.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(11), notFound.Ref.ID)
}

func TestLockWaitEndsWithContext(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, holder.Ledger().Lock(ctx, []inventory.Ref{inventory.ProductRef(1)}))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(waitCtx)
	require.NoError(t, err)
	err = waiter.Ledger().Lock(waitCtx, []inventory.Ref{inventory.ProductRef(1)})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NoError(t, waiter.Rollback())

	require.NoError(t, holder.Rollback())

	next, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, next.Ledger().Lock(ctx, []inventory.Ref{inventory.ProductRef(1)}))
	require.NoError(t, next.Rollback())
}

func TestCommitAfterDeadlineRollsBack(t *testing.T) {
	s := seeded()
	ctx, cancel := context.WithCancel(context.Background())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().Decrement(ctx, inventory.ProductRef(1), 1))
	cancel()

	require.ErrorIs(t, tx.Commit(), context.Canceled)
	assert.Equal(t, 10, s.ProductStock(1))
}

func TestDuplicateIdempotencyKey(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	key := "abc"

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	order := &models.Order{UserID: 2, IdempotencyKey: &key}
	require.NoError(t, first.Orders().Create(ctx, order))
	require.NoError(t, first.Commit())

	found, err := s.Orders().FindByIdempotencyKey(ctx, 2, key)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	defer second.Rollback()
	require.ErrorIs(t, second.Orders().Create(ctx, &models.Order{UserID: 2, IdempotencyKey: &key}), orders.ErrDuplicateKey)

	// Another buyer may reuse the same key.
	third, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, third.Orders().Create(ctx, &models.Order{UserID: 3, IdempotencyKey: &key}))
	require.NoError(t, third.Commit())
}

func TestCartDeleteOwnership(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	id := s.PutCartItem(models.CartItem{UserID: 2, ProductID: 1, Quantity: 1})

	require.ErrorIs(t, s.Cart().Delete(ctx, 3, id), cart.ErrNotFound)
	require.NoError(t, s.Cart().Delete(ctx, 2, id))
	require.ErrorIs(t, s.Cart().Delete(ctx, 2, id), cart.ErrNotFound)

	items, err := s.Cart().List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartConsumeTwiceInOneUnit(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	item := models.CartItem{UserID: 2, ProductID: 1, SellerID: 7, Price: decimal.RequireFromString("5.00"), Quantity: 1}
	item.ID = s.PutCartItem(item)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, tx.Cart().Consume(ctx, 2, item))
	require.ErrorIs(t, tx.Cart().Consume(ctx, 2, item), cart.ErrNotFound)
}

func TestCartConsumeRequiresSameSelection(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	item := models.CartItem{UserID: 2, ProductID: 1, SellerID: 7, Price: decimal.RequireFromString("5.00"), Quantity: 1}
	item.ID = s.PutCartItem(item)

	forged := item
	forged.ProductID = 2
	forged.Price = decimal.RequireFromString("0.01")
	forged.Quantity = 4

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Cart().Consume(ctx, 2, forged), cart.ErrMismatch)
	require.NoError(t, tx.Cart().Consume(ctx, 2, item))
	require.NoError(t, tx.Commit())

	items, err := s.Cart().List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListByUserNewestFirst(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Orders().Create(ctx, &models.Order{UserID: 2}))
		require.NoError(t, tx.Commit())
	}

	list, err := s.Orders().ListByUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Greater(t, list[0].ID, list[2].ID)

	_, err = s.Orders().Get(ctx, 9, list[0].ID)
	require.ErrorIs(t, err, orders.ErrNotFound)
}
