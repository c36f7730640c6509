package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemPending is the fulfillment status every new order item starts with.
const OrderItemPending = "Pending"

// Order is the model for the 'orders' table.
// It is written once per successful checkout.
type Order struct {
	ID             int64           `json:"id" db:"id"`
	UserID         int64           `json:"userId" db:"user_id"` // The buyer
	AddressID      *int64          `json:"addressId,omitempty" db:"address_id"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
	PaymentMethod  string          `json:"paymentMethod" db:"payment_method"`
	IdempotencyKey *string         `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is the model for the 'order_items' table.
// Price, image and attributes are snapshots taken at purchase time.
type OrderItem struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"orderId" db:"order_id"`
	ProductID  int64           `json:"productId" db:"product_id"`
	VariantID  *int64          `json:"variantId,omitempty" db:"variant_id"`
	SellerID   int64           `json:"sellerId" db:"seller_id"`
	UnitPrice  decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity   int             `json:"quantity" db:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	ImageURL   string          `json:"imageUrl" db:"image_url"`
	Attributes Attributes      `json:"attributes,omitempty" db:"attributes"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}
