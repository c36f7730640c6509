// Package analytics maintains the rolling sales aggregates per product,
// variant and seller. Aggregates are created on first sale and only ever
// incremented through RecordSale, so the totals stay additive.
package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/models"
)

type Scope string

const (
	ScopeProduct Scope = "product"
	ScopeVariant Scope = "variant"
	ScopeSeller  Scope = "seller"
)

// ErrNotFound is returned by Reader.Get when no sale was ever recorded for the key.
var ErrNotFound = errors.New("analytics aggregate not found")

// Aggregator is the write side, bound to one unit of work.
type Aggregator interface {
	// RecordSale creates the aggregate with the given deltas or adds them to
	// the existing one.
	RecordSale(ctx context.Context, scope Scope, key int64, quantity int, revenue decimal.Decimal) error
}

// Reader exposes committed aggregates.
type Reader interface {
	Get(ctx context.Context, scope Scope, key int64) (*models.SalesAggregate, error)
}

type table struct {
	name   string
	keyCol string
}

var tables = map[Scope]table{
	ScopeProduct: {name: "product_analytics", keyCol: "product_id"},
	ScopeVariant: {name: "variant_analytics", keyCol: "variant_id"},
	ScopeSeller:  {name: "seller_performance", keyCol: "seller_id"},
}

// ParseScope accepts the plural URL forms as well ("products", "sellers").
func ParseScope(s string) (Scope, error) {
	switch s {
	case "product", "products":
		return ScopeProduct, nil
	case "variant", "variants":
		return ScopeVariant, nil
	case "seller", "sellers":
		return ScopeSeller, nil
	}
	return "", fmt.Errorf("unknown analytics scope %q", s)
}

func tableFor(scope Scope) (table, error) {
	t, ok := tables[scope]
	if !ok {
		return table{}, fmt.Errorf("unknown analytics scope %q", scope)
	}
	return t, nil
}

func validSale(scope Scope, key int64, quantity int, revenue decimal.Decimal) error {
	if key <= 0 {
		return fmt.Errorf("record %s sale: invalid key %d", scope, key)
	}
	if quantity <= 0 {
		return fmt.Errorf("record %s sale: quantity must be positive, got %d", scope, quantity)
	}
	if revenue.IsNegative() {
		return fmt.Errorf("record %s sale: negative revenue %s", scope, revenue)
	}
	return nil
}
