package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the model for the 'products' table.
// StockQuantity never goes below zero; only the inventory ledger decrements it.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	SellerID      int64           `json:"sellerId" db:"seller_id"`
	CategoryID    *int64          `json:"categoryId,omitempty" db:"category_id"`
	BrandID       *int64          `json:"brandId,omitempty" db:"brand_id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock" db:"stock_quantity"`
	ImageURL      string          `json:"imageUrl" db:"image_url"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductVariant is the model for the 'product_variants' table
type ProductVariant struct {
	ID            int64           `json:"id" db:"id"`
	ProductID     int64           `json:"productId" db:"product_id"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock" db:"stock_quantity"`
	Options       Attributes      `json:"options,omitempty" db:"options"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Attribution is the category/brand pair a purchase event is credited to.
// Either side may be unknown.
type Attribution struct {
	CategoryID *int64 `json:"categoryId,omitempty"`
	BrandID    *int64 `json:"brandId,omitempty"`
}
