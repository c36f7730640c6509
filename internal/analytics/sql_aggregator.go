package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

// SQLAggregator implements Aggregator and Reader on MySQL.
// The increment is a single INSERT ... ON DUPLICATE KEY UPDATE, so InnoDB's
// row lock makes each read-modify-write atomic.
type SQLAggregator struct {
	db database.DBTX
}

func NewSQLAggregator(db database.DBTX) *SQLAggregator {
	return &SQLAggregator{db: db}
}

func (a *SQLAggregator) RecordSale(ctx context.Context, scope Scope, key int64, quantity int, revenue decimal.Decimal) error {
	t, err := tableFor(scope)
	if err != nil {
		return err
	}
	if err := validSale(scope, key, quantity, revenue); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, sales_count, total_revenue, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			sales_count = sales_count + VALUES(sales_count),
			total_revenue = total_revenue + VALUES(total_revenue),
			updated_at = VALUES(updated_at)`, t.name, t.keyCol)

	if _, err := a.db.ExecContext(ctx, query, key, quantity, revenue, time.Now()); err != nil {
		return fmt.Errorf("record %s sale for %d: %w", scope, key, err)
	}
	return nil
}

func (a *SQLAggregator) Get(ctx context.Context, scope Scope, key int64) (*models.SalesAggregate, error) {
	t, err := tableFor(scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT sales_count, total_revenue, rating_sum, rating_count, updated_at
		FROM %s WHERE %s = ?`, t.name, t.keyCol)

	agg := &models.SalesAggregate{Scope: string(scope), Key: key}
	err = a.db.QueryRowContext(ctx, query, key).Scan(
		&agg.SalesCount, &agg.TotalRevenue, &agg.RatingSum, &agg.RatingCount, &agg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s aggregate %d: %w", scope, key, err)
	}
	return agg, nil
}
