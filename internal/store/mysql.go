package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/eventlog"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/orders"
)

// MySQL is the production Store. Each unit of work is one READ COMMITTED
// InnoDB transaction: row locks from SELECT ... FOR UPDATE and the
// conditional stock UPDATE serialize same-row writers while disjoint
// checkouts proceed in parallel.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

func (s *MySQL) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &mysqlTx{tx: tx}, nil
}

func (s *MySQL) Orders() orders.Reader { return orders.NewSQLRepository(s.db) }
func (s *MySQL) Cart() cart.Repository { return cart.NewSQLStore(s.db) }
func (s *MySQL) Catalog() catalog.Reader { return catalog.NewSQLCatalog(s.db) }
func (s *MySQL) Analytics() analytics.Reader { return analytics.NewSQLAggregator(s.db) }

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Orders() orders.Writer { return orders.NewSQLRepository(t.tx) }
func (t *mysqlTx) Ledger() inventory.Ledger { return inventory.NewSQLLedger(t.tx) }
func (t *mysqlTx) Analytics() analytics.Aggregator { return analytics.NewSQLAggregator(t.tx) }
func (t *mysqlTx) Events() eventlog.Sink { return eventlog.NewSQLSink(t.tx) }
func (t *mysqlTx) Cart() cart.Consumer { return cart.NewSQLStore(t.tx) }
func (t *mysqlTx) Catalog() catalog.Reader { return catalog.NewSQLCatalog(t.tx) }

func (t *mysqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *mysqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
