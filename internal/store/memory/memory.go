// Package memory is an in-process Store with the same transactional
// contract as the MySQL store. Units of work take per-row locks and buffer
// their writes; Commit applies the buffer atomically, Rollback drops it.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/models"
	"github.com/01moynul/taptosell-checkout/internal/orders"
	"github.com/01moynul/taptosell-checkout/internal/store"
)

type aggKey struct {
	scope analytics.Scope
	key   int64
}

type idemKey struct {
	userID int64
	key    string
}

// AggregateKey names an aggregate in State.Aggregates, e.g. "product:7".
func AggregateKey(scope analytics.Scope, key int64) string {
	return string(scope) + ":" + strconv.FormatInt(key, 10)
}

// State is a deep copy of everything the store holds.
type State struct {
	Products   map[int64]models.Product
	Variants   map[int64]models.ProductVariant
	CartItems  map[int64]models.CartItem
	Orders     map[int64]models.Order
	OrderItems map[int64][]models.OrderItem
	Aggregates map[string]models.SalesAggregate
	Events     []models.EventLog
}

type Store struct {
	mu         sync.RWMutex
	products   map[int64]models.Product
	variants   map[int64]models.ProductVariant
	cartItems  map[int64]models.CartItem
	orders     map[int64]models.Order
	orderItems map[int64][]models.OrderItem
	idem       map[idemKey]int64
	aggregates map[aggKey]models.SalesAggregate
	events     []models.EventLog

	seqMu     sync.Mutex
	nextOrder int64
	nextItem  int64
	nextCart  int64

	locks *lockTable
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products:   make(map[int64]models.Product),
		variants:   make(map[int64]models.ProductVariant),
		cartItems:  make(map[int64]models.CartItem),
		orders:     make(map[int64]models.Order),
		orderItems: make(map[int64][]models.OrderItem),
		idem:       make(map[idemKey]int64),
		aggregates: make(map[aggKey]models.SalesAggregate),
		locks:      newLockTable(),
		now:        time.Now,
	}
}

// Ids are consumed even by rolled-back units of work, like AUTO_INCREMENT.
func (s *Store) nextID(counter *int64) int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	*counter++
	return *counter
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newTx(ctx, s), nil
}

func (s *Store) Orders() orders.Reader       { return orderReader{s} }
func (s *Store) Cart() cart.Repository       { return cartRepo{s} }
func (s *Store) Catalog() catalog.Reader     { return catalogReader{s} }
func (s *Store) Analytics() analytics.Reader { return analyticsReader{s} }

// --- Seeding ---

func (s *Store) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutVariant(v models.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// PutCartItem stores item, assigning an id when it has none, and returns the id.
func (s *Store) PutCartItem(item models.CartItem) int64 {
	s.seqMu.Lock()
	if item.ID == 0 {
		s.nextCart++
		item.ID = s.nextCart
	} else if item.ID > s.nextCart {
		s.nextCart = item.ID
	}
	s.seqMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	item.Attributes = item.Attributes.Clone()
	s.cartItems[item.ID] = item
	return item.ID
}

// --- Inspection ---

func (s *Store) ProductStock(id int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id].StockQuantity
}

func (s *Store) VariantStock(id int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variants[id].StockQuantity
}

func (s *Store) Events() []models.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EventLog(nil), s.events...)
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Products:   make(map[int64]models.Product, len(s.products)),
		Variants:   make(map[int64]models.ProductVariant, len(s.variants)),
		CartItems:  make(map[int64]models.CartItem, len(s.cartItems)),
		Orders:     make(map[int64]models.Order, len(s.orders)),
		OrderItems: make(map[int64][]models.OrderItem, len(s.orderItems)),
		Aggregates: make(map[string]models.SalesAggregate, len(s.aggregates)),
		Events:     append([]models.EventLog(nil), s.events...),
	}
	for k, v := range s.products {
		st.Products[k] = v
	}
	for k, v := range s.variants {
		v.Options = v.Options.Clone()
		st.Variants[k] = v
	}
	for k, v := range s.cartItems {
		v.Attributes = v.Attributes.Clone()
		st.CartItems[k] = v
	}
	for k, v := range s.orders {
		st.Orders[k] = v
	}
	for k, v := range s.orderItems {
		st.OrderItems[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range s.aggregates {
		st.Aggregates[AggregateKey(k.scope, k.key)] = v
	}
	return st
}

// --- Committed reads ---

type orderReader struct{ s *Store }

func (r orderReader) Get(_ context.Context, userID, orderID int64) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (r orderReader) Items(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]models.OrderItem{}, r.s.orderItems[orderID]...), nil
}

func (r orderReader) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []models.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r orderReader) FindByIdempotencyKey(_ context.Context, userID int64, key string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.idem[idemKey{userID, key}]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o := r.s.orders[id]
	return &o, nil
}

type cartRepo struct{ s *Store }

func (r cartRepo) List(_ context.Context, userID int64) ([]models.CartItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := []models.CartItem{}
	for _, item := range r.s.cartItems {
		if item.UserID == userID {
			item.Attributes = item.Attributes.Clone()
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r cartRepo) Add(_ context.Context, item *models.CartItem) error {
	now := r.s.now()
	item.CreatedAt, item.UpdatedAt = now, now
	item.ID = r.s.PutCartItem(*item)
	return nil
}

// Delete runs as its own unit of work so it queues behind a checkout that
// is consuming the same line.
func (r cartRepo) Delete(ctx context.Context, userID, cartItemID int64) error {
	tx := newTx(ctx, r.s)
	defer tx.Rollback()
	if err := (cartConsumer{tx}).delete(ctx, userID, cartItemID); err != nil {
		return err
	}
	return tx.Commit()
}

type catalogReader struct{ s *Store }

func (r catalogReader) Attribution(_ context.Context, productID int64) (models.Attribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[productID]
	if !ok {
		return models.Attribution{}, catalog.ErrNotFound
	}
	return models.Attribution{CategoryID: p.CategoryID, BrandID: p.BrandID}, nil
}

func (r catalogReader) Product(_ context.Context, productID int64) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (r catalogReader) Variant(_ context.Context, variantID int64) (*models.ProductVariant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.variants[variantID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	v.Options = v.Options.Clone()
	return &v, nil
}

type analyticsReader struct{ s *Store }

func (r analyticsReader) Get(_ context.Context, scope analytics.Scope, key int64) (*models.SalesAggregate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	agg, ok := r.s.aggregates[aggKey{scope, key}]
	if !ok {
		return nil, analytics.ErrNotFound
	}
	return &agg, nil
}
