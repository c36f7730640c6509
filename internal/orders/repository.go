// Package orders persists order headers and their items.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateKey means an order with the same (buyer, idempotency key) exists.
	ErrDuplicateKey = errors.New("order idempotency key already used")
)

// Writer creates orders inside a unit of work.
type Writer interface {
	Create(ctx context.Context, order *models.Order) error
	AddItem(ctx context.Context, item *models.OrderItem) error
}

// Reader serves committed orders.
type Reader interface {
	Get(ctx context.Context, userID, orderID int64) (*models.Order, error)
	Items(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error)
}

// SQLRepository implements Writer and Reader on MySQL.
type SQLRepository struct {
	db database.DBTX
}

func NewSQLRepository(db database.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, address_id, total_amount, payment_method, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		order.UserID, order.AddressID, order.TotalAmount, order.PaymentMethod, order.IdempotencyKey,
		order.CreatedAt, order.UpdatedAt)
	if database.IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get new order id: %w", err)
	}
	order.ID = id
	return nil
}

func (r *SQLRepository) AddItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items
		(order_id, product_id, variant_id, seller_id, unit_price, quantity, subtotal, image_url, attributes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		item.OrderID, item.ProductID, item.VariantID, item.SellerID, item.UnitPrice, item.Quantity,
		item.Subtotal, item.ImageURL, item.Attributes, item.Status, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order item for product %d: %w", item.ProductID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get new order item id: %w", err)
	}
	item.ID = id
	return nil
}

const orderColumns = "id, user_id, address_id, total_amount, payment_method, idempotency_key, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var address sql.NullInt64
	var key sql.NullString
	if err := row.Scan(&o.ID, &o.UserID, &address, &o.TotalAmount, &o.PaymentMethod, &key, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if address.Valid {
		o.AddressID = &address.Int64
	}
	if key.Valid {
		o.IdempotencyKey = &key.String
	}
	return &o, nil
}

func (r *SQLRepository) Get(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ? AND user_id = ?", orderID, userID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return o, nil
}

func (r *SQLRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = ? AND idempotency_key = ?", userID, key)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}
	return o, nil
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	list := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return list, nil
}

func (r *SQLRepository) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, seller_id, unit_price, quantity, subtotal, image_url, attributes, status, created_at
		FROM order_items
		WHERE order_id = ?
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		var variant sql.NullInt64
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &variant, &item.SellerID, &item.UnitPrice, &item.Quantity,
			&item.Subtotal, &item.ImageURL, &item.Attributes, &item.Status, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if variant.Valid {
			item.VariantID = &variant.Int64
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}
