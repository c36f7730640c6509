package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/01moynul/taptosell-checkout/internal/database"
)

// SQLLedger implements Ledger on the MySQL 'products' and 'product_variants'
// tables. It must be built on a *sql.Tx for its locks to mean anything.
type SQLLedger struct {
	db database.DBTX
}

func NewSQLLedger(db database.DBTX) *SQLLedger {
	return &SQLLedger{db: db}
}

func (l *SQLLedger) Lock(ctx context.Context, refs []Ref) error {
	var products, variants []Ref
	for _, r := range Canonical(refs) {
		if r.Kind == KindProduct {
			products = append(products, r)
		} else {
			variants = append(variants, r)
		}
	}

	if len(products) > 0 {
		query := "SELECT id, id FROM products WHERE id IN (" + database.InPlaceholders(len(products)) + ") ORDER BY id FOR UPDATE"
		if err := l.lockRows(ctx, query, products); err != nil {
			return err
		}
	}
	if len(variants) > 0 {
		query := "SELECT id, product_id FROM product_variants WHERE id IN (" + database.InPlaceholders(len(variants)) + ") ORDER BY id FOR UPDATE"
		if err := l.lockRows(ctx, query, variants); err != nil {
			return err
		}
	}
	return nil
}

// lockRows runs a locking SELECT over refs (all of one kind) and checks that
// every ref came back with the expected owning product.
func (l *SQLLedger) lockRows(ctx context.Context, query string, refs []Ref) error {
	args := make([]any, len(refs))
	for i, r := range refs {
		args[i] = r.ID
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("lock %s rows: %w", refs[0].Kind, err)
	}
	defer rows.Close()

	owner := make(map[int64]int64, len(refs))
	for rows.Next() {
		var id, productID int64
		if err := rows.Scan(&id, &productID); err != nil {
			return fmt.Errorf("scan locked %s: %w", refs[0].Kind, err)
		}
		owner[id] = productID
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock %s rows: %w", refs[0].Kind, err)
	}

	for _, r := range refs {
		productID, ok := owner[r.ID]
		if !ok || productID != r.ProductID {
			return &NotFoundError{Ref: r}
		}
	}
	return nil
}

func (l *SQLLedger) Decrement(ctx context.Context, ref Ref, qty int) error {
	if err := validQuantity(ref, qty); err != nil {
		return err
	}

	var (
		res sql.Result
		err error
	)
	now := time.Now()
	switch ref.Kind {
	case KindProduct:
		res, err = l.db.ExecContext(ctx,
			"UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?",
			qty, now, ref.ID, qty)
	case KindVariant:
		res, err = l.db.ExecContext(ctx,
			"UPDATE product_variants SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND product_id = ? AND stock_quantity >= ?",
			qty, now, ref.ID, ref.ProductID, qty)
	default:
		return fmt.Errorf("decrement: unknown stock kind %q", ref.Kind)
	}
	if err != nil {
		return fmt.Errorf("decrement %s: %w", ref, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement %s: %w", ref, err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the floor check failed or the row is gone.
	available, err := l.available(ctx, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Ref: ref}
	}
	if err != nil {
		return fmt.Errorf("read stock for %s: %w", ref, err)
	}
	return &InsufficientStockError{Ref: ref, Requested: qty, Available: available}
}

func (l *SQLLedger) available(ctx context.Context, ref Ref) (int, error) {
	var stock int
	var err error
	if ref.Kind == KindVariant {
		err = l.db.QueryRowContext(ctx,
			"SELECT stock_quantity FROM product_variants WHERE id = ? AND product_id = ?", ref.ID, ref.ProductID).Scan(&stock)
	} else {
		err = l.db.QueryRowContext(ctx,
			"SELECT stock_quantity FROM products WHERE id = ?", ref.ID).Scan(&stock)
	}
	return stock, err
}
