package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is the model for the 'cart_items' table.
// A row lives until its line is folded into an order.
type CartItem struct {
	ID         int64           `json:"id" db:"id"`
	UserID     int64           `json:"userId" db:"user_id"`
	ProductID  int64           `json:"productId" db:"product_id"`
	VariantID  *int64          `json:"variantId,omitempty" db:"variant_id"`
	SellerID   int64           `json:"sellerId" db:"seller_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Quantity   int             `json:"quantity" db:"quantity"`
	ImageURL   string          `json:"imageUrl" db:"image_url"`
	Attributes Attributes      `json:"attributes,omitempty" db:"attributes"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// LineTotal is price × quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
