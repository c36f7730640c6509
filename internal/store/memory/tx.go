package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/eventlog"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/models"
	"github.com/01moynul/taptosell-checkout/internal/orders"
	"github.com/01moynul/taptosell-checkout/internal/store"
)

type saleDelta struct {
	count   int64
	revenue decimal.Decimal
}

// tx buffers every write until Commit. Row locks are held from first use
// until the unit of work ends.
type tx struct {
	ctx context.Context
	s   *Store

	held  []string
	holds map[string]bool

	stock     map[string]int
	orders    []models.Order
	items     []models.OrderItem
	sales     map[aggKey]saleDelta
	events    []models.EventLog
	cartItems map[int64]bool

	done bool
}

var _ store.Tx = (*tx)(nil)

func newTx(ctx context.Context, s *Store) *tx {
	return &tx{
		ctx:       ctx,
		s:         s,
		holds:     make(map[string]bool),
		stock:     make(map[string]int),
		sales:     make(map[aggKey]saleDelta),
		cartItems: make(map[int64]bool),
	}
}

func stockKey(ref inventory.Ref) string {
	return string(ref.Kind) + ":" + strconv.FormatInt(ref.ID, 10)
}

func (t *tx) lock(ctx context.Context, key string) error {
	if t.done {
		return sql.ErrTxDone
	}
	if t.holds[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.holds[key] = true
	t.held = append(t.held, key)
	return nil
}

func (t *tx) unlockAll() {
	for _, key := range t.held {
		t.s.locks.release(key)
	}
	t.held = nil
	t.holds = map[string]bool{}
}

func (t *tx) Orders() orders.Writer           { return orderWriter{t} }
func (t *tx) Ledger() inventory.Ledger        { return ledger{t} }
func (t *tx) Analytics() analytics.Aggregator { return aggregator{t} }
func (t *tx) Events() eventlog.Sink           { return sink{t} }
func (t *tx) Cart() cart.Consumer             { return cartConsumer{t} }
func (t *tx) Catalog() catalog.Reader         { return catalogReader{t.s} }

// Commit applies the buffered writes in one step. A unit of work whose
// context has ended is rolled back instead.
func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	defer func() {
		t.done = true
		t.unlockAll()
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range t.orders {
		if o.IdempotencyKey != nil {
			if _, ok := s.idem[idemKey{o.UserID, *o.IdempotencyKey}]; ok {
				return orders.ErrDuplicateKey
			}
		}
	}

	for key, qty := range t.stock {
		kind, id := splitKey(key)
		switch inventory.Kind(kind) {
		case inventory.KindProduct:
			p := s.products[id]
			p.StockQuantity -= qty
			s.products[id] = p
		case inventory.KindVariant:
			v := s.variants[id]
			v.StockQuantity -= qty
			s.variants[id] = v
		}
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
		if o.IdempotencyKey != nil {
			s.idem[idemKey{o.UserID, *o.IdempotencyKey}] = o.ID
		}
	}
	for _, item := range t.items {
		s.orderItems[item.OrderID] = append(s.orderItems[item.OrderID], item)
	}

	now := s.now()
	for k, d := range t.sales {
		agg, ok := s.aggregates[k]
		if !ok {
			agg = models.SalesAggregate{Scope: string(k.scope), Key: k.key, TotalRevenue: decimal.Zero}
		}
		agg.SalesCount += d.count
		agg.TotalRevenue = agg.TotalRevenue.Add(d.revenue)
		agg.UpdatedAt = now
		s.aggregates[k] = agg
	}
	for _, e := range t.events {
		e.ID = int64(len(s.events)) + 1
		s.events = append(s.events, e)
	}
	for id := range t.cartItems {
		delete(s.cartItems, id)
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.unlockAll()
	return nil
}

func splitKey(key string) (string, int64) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			id, _ := strconv.ParseInt(key[i+1:], 10, 64)
			return key[:i], id
		}
	}
	return key, 0
}

// --- Inventory ---

type ledger struct{ t *tx }

func (l ledger) Lock(ctx context.Context, refs []inventory.Ref) error {
	for _, ref := range inventory.Canonical(refs) {
		if err := l.t.lock(ctx, stockKey(ref)); err != nil {
			return err
		}
		if _, ok := l.t.committedStock(ref, true); !ok {
			return &inventory.NotFoundError{Ref: ref}
		}
	}
	return nil
}

func (l ledger) Decrement(ctx context.Context, ref inventory.Ref, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("decrement %s: quantity must be positive, got %d", ref, qty)
	}
	key := stockKey(ref)
	if err := l.t.lock(ctx, key); err != nil {
		return err
	}
	stock, ok := l.t.committedStock(ref, false)
	if !ok {
		return &inventory.NotFoundError{Ref: ref}
	}
	available := stock - l.t.stock[key]
	if available < qty {
		return &inventory.InsufficientStockError{Ref: ref, Requested: qty, Available: available}
	}
	l.t.stock[key] += qty
	return nil
}

// committedStock reads the committed counter. With owner set, a variant
// must also belong to ref.ProductID.
func (t *tx) committedStock(ref inventory.Ref, owner bool) (int, bool) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	switch ref.Kind {
	case inventory.KindProduct:
		p, ok := t.s.products[ref.ID]
		return p.StockQuantity, ok
	case inventory.KindVariant:
		v, ok := t.s.variants[ref.ID]
		if ok && owner && v.ProductID != ref.ProductID {
			return 0, false
		}
		return v.StockQuantity, ok
	}
	return 0, false
}

// --- Orders ---

type orderWriter struct{ t *tx }

// Create holds a lock on the (buyer, key) pair so a concurrent request with
// the same key waits for this one and then sees the duplicate, as it would
// on the unique index.
func (w orderWriter) Create(ctx context.Context, order *models.Order) error {
	if order.IdempotencyKey != nil {
		key := "idem:" + strconv.FormatInt(order.UserID, 10) + ":" + *order.IdempotencyKey
		if err := w.t.lock(ctx, key); err != nil {
			return err
		}
		w.t.s.mu.RLock()
		_, dup := w.t.s.idem[idemKey{order.UserID, *order.IdempotencyKey}]
		w.t.s.mu.RUnlock()
		if dup {
			return orders.ErrDuplicateKey
		}
	} else if w.t.done {
		return sql.ErrTxDone
	}
	order.ID = w.t.s.nextID(&w.t.s.nextOrder)
	o := *order
	if order.IdempotencyKey != nil {
		k := *order.IdempotencyKey
		o.IdempotencyKey = &k
	}
	w.t.orders = append(w.t.orders, o)
	return nil
}

func (w orderWriter) AddItem(_ context.Context, item *models.OrderItem) error {
	if w.t.done {
		return sql.ErrTxDone
	}
	item.ID = w.t.s.nextID(&w.t.s.nextItem)
	copied := *item
	copied.Attributes = item.Attributes.Clone()
	w.t.items = append(w.t.items, copied)
	return nil
}

// --- Analytics ---

type aggregator struct{ t *tx }

func (a aggregator) RecordSale(_ context.Context, scope analytics.Scope, key int64, quantity int, revenue decimal.Decimal) error {
	if a.t.done {
		return sql.ErrTxDone
	}
	if _, err := analytics.ParseScope(string(scope)); err != nil {
		return err
	}
	if key <= 0 {
		return fmt.Errorf("record %s sale: invalid key %d", scope, key)
	}
	if quantity <= 0 {
		return fmt.Errorf("record %s sale: quantity must be positive, got %d", scope, quantity)
	}
	if revenue.IsNegative() {
		return fmt.Errorf("record %s sale: negative revenue %s", scope, revenue)
	}
	k := aggKey{scope, key}
	d := a.t.sales[k]
	d.count += int64(quantity)
	d.revenue = d.revenue.Add(revenue)
	a.t.sales[k] = d
	return nil
}

// --- Event log ---

type sink struct{ t *tx }

func (s sink) Append(_ context.Context, events []models.EventLog) error {
	if s.t.done {
		return sql.ErrTxDone
	}
	s.t.events = append(s.t.events, events...)
	return nil
}

// --- Cart ---

type cartConsumer struct{ t *tx }

func (c cartConsumer) Consume(ctx context.Context, userID int64, want models.CartItem) error {
	have, err := c.lookup(ctx, userID, want.ID)
	if err != nil {
		return err
	}
	if !cart.Matches(have, want) {
		return fmt.Errorf("%w: %d", cart.ErrMismatch, want.ID)
	}
	c.t.cartItems[want.ID] = true
	return nil
}

func (c cartConsumer) delete(ctx context.Context, userID, cartItemID int64) error {
	if _, err := c.lookup(ctx, userID, cartItemID); err != nil {
		return err
	}
	c.t.cartItems[cartItemID] = true
	return nil
}

// lookup locks the row and returns it while the buyer owns it and this unit
// of work has not consumed it yet.
func (c cartConsumer) lookup(ctx context.Context, userID, cartItemID int64) (models.CartItem, error) {
	if err := c.t.lock(ctx, "cart:"+strconv.FormatInt(cartItemID, 10)); err != nil {
		return models.CartItem{}, err
	}
	c.t.s.mu.RLock()
	item, ok := c.t.s.cartItems[cartItemID]
	c.t.s.mu.RUnlock()
	if !ok || item.UserID != userID || c.t.cartItems[cartItemID] {
		return models.CartItem{}, fmt.Errorf("%w: %d", cart.ErrNotFound, cartItemID)
	}
	return item, nil
}
