// Package cart holds buyers' pending selections until checkout consumes them.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

var (
	// ErrNotFound means the cart item does not exist or belongs to another buyer.
	ErrNotFound = errors.New("cart item not found")
	// ErrMismatch means the cart item holds a different selection than the
	// order line settling it.
	ErrMismatch = errors.New("cart item does not match order line")
)

// Consumer is the checkout side of the cart: removing a line once it is
// folded into an order.
type Consumer interface {
	// Consume deletes the buyer's cart item want.ID, provided it still holds
	// want's product, variant, seller, price and quantity.
	Consume(ctx context.Context, userID int64, want models.CartItem) error
}

// Repository is the cart API used by the cart endpoints.
type Repository interface {
	Delete(ctx context.Context, userID, cartItemID int64) error
	List(ctx context.Context, userID int64) ([]models.CartItem, error)
	Add(ctx context.Context, item *models.CartItem) error
}

// Matches reports whether have and want hold the same selection at the same
// price. Image and attributes are descriptive and not compared.
func Matches(have, want models.CartItem) bool {
	if have.ProductID != want.ProductID || have.SellerID != want.SellerID || have.Quantity != want.Quantity {
		return false
	}
	if !have.Price.Equal(want.Price) {
		return false
	}
	if have.VariantID == nil || want.VariantID == nil {
		return have.VariantID == nil && want.VariantID == nil
	}
	return *have.VariantID == *want.VariantID
}

// SQLStore implements Repository on the MySQL 'cart_items' table.
type SQLStore struct {
	db database.DBTX
}

func NewSQLStore(db database.DBTX) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Delete(ctx context.Context, userID, cartItemID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = ? AND user_id = ?", cartItemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item %d: %w", cartItemID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart item %d: %w", cartItemID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, cartItemID)
	}
	return nil
}

// Consume locks the row, compares it with want and deletes it.
func (s *SQLStore) Consume(ctx context.Context, userID int64, want models.CartItem) error {
	var have models.CartItem
	var variant sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, variant_id, seller_id, price, quantity
		FROM cart_items
		WHERE id = ? AND user_id = ?
		FOR UPDATE`, want.ID, userID,
	).Scan(&have.ProductID, &variant, &have.SellerID, &have.Price, &have.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrNotFound, want.ID)
	}
	if err != nil {
		return fmt.Errorf("lock cart item %d: %w", want.ID, err)
	}
	if variant.Valid {
		have.VariantID = &variant.Int64
	}

	if !Matches(have, want) {
		return fmt.Errorf("%w: %d", ErrMismatch, want.ID)
	}
	return s.Delete(ctx, userID, want.ID)
}

func (s *SQLStore) List(ctx context.Context, userID int64) ([]models.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, variant_id, seller_id, price, quantity, image_url, attributes, created_at, updated_at
		FROM cart_items
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		var variant sql.NullInt64
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &variant, &item.SellerID, &item.Price,
			&item.Quantity, &item.ImageURL, &item.Attributes, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if variant.Valid {
			item.VariantID = &variant.Int64
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) Add(ctx context.Context, item *models.CartItem) error {
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items
		(user_id, product_id, variant_id, seller_id, price, quantity, image_url, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.UserID, item.ProductID, item.VariantID, item.SellerID, item.Price,
		item.Quantity, item.ImageURL, item.Attributes, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	item.ID = id
	return nil
}
