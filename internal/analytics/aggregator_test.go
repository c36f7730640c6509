package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSaleUpsertsPerScope(t *testing.T) {
	tests := []struct {
		scope  Scope
		table  string
		keyCol string
	}{
		{ScopeProduct, "product_analytics", "product_id"},
		{ScopeVariant, "variant_analytics", "variant_id"},
		{ScopeSeller, "seller_performance", "seller_id"},
	}

	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`INSERT INTO ` + tt.table + ` \(` + tt.keyCol + `, sales_count, total_revenue, updated_at\)(?s).*ON DUPLICATE KEY UPDATE.*sales_count = sales_count \+ VALUES\(sales_count\)`).
				WithArgs(int64(42), 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))

			agg := NewSQLAggregator(db)
			require.NoError(t, agg.RecordSale(context.Background(), tt.scope, 42, 3, decimal.RequireFromString("29.97")))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	agg := NewSQLAggregator(db)
	ctx := context.Background()

	assert.Error(t, agg.RecordSale(ctx, Scope("warehouse"), 1, 1, decimal.NewFromInt(1)))
	assert.Error(t, agg.RecordSale(ctx, ScopeProduct, 0, 1, decimal.NewFromInt(1)))
	assert.Error(t, agg.RecordSale(ctx, ScopeProduct, 1, 0, decimal.NewFromInt(1)))
	assert.Error(t, agg.RecordSale(ctx, ScopeProduct, 1, 1, decimal.NewFromInt(-1)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT sales_count, total_revenue, rating_sum, rating_count, updated_at\s+FROM seller_performance WHERE seller_id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sales_count", "total_revenue", "rating_sum", "rating_count", "updated_at"}).
			AddRow(5, "120.50", 9, 2, now))

	got, err := NewSQLAggregator(db).Get(context.Background(), ScopeSeller, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.SalesCount)
	assert.True(t, decimal.RequireFromString("120.50").Equal(got.TotalRevenue))
	assert.Equal(t, "seller", got.Scope)
	assert.Equal(t, int64(7), got.Key)
}

func TestGetAggregateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM product_analytics WHERE product_id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sales_count", "total_revenue", "rating_sum", "rating_count", "updated_at"}))

	_, err = NewSQLAggregator(db).Get(context.Background(), ScopeProduct, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"products": ScopeProduct, "variant": ScopeVariant, "sellers": ScopeSeller} {
		got, err := ParseScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScope("orders")
	assert.Error(t, err)
}
