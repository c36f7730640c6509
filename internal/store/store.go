// Package store binds the checkout collaborators to one atomic unit of work.
package store

import (
	"context"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/eventlog"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/orders"
)

// Tx is one unit of work. Every collaborator it hands out writes into the
// same transaction; nothing is visible to others before Commit and nothing
// survives Rollback. Rollback after Commit is a no-op.
type Tx interface {
	Orders() orders.Writer
	Ledger() inventory.Ledger
	Analytics() analytics.Aggregator
	Events() eventlog.Sink
	Cart() cart.Consumer
	Catalog() catalog.Reader

	Commit() error
	Rollback() error
}

// Store opens units of work and serves committed reads.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	Orders() orders.Reader
	Cart() cart.Repository
	Catalog() catalog.Reader
	Analytics() analytics.Reader
}
