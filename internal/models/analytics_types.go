package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesAggregate is one row of 'product_analytics', 'variant_analytics' or
// 'seller_performance'. Key is the product, variant or seller id.
// Rating fields are maintained by the review flow, never by checkout.
type SalesAggregate struct {
	Scope        string          `json:"scope"`
	Key          int64           `json:"key"`
	SalesCount   int64           `json:"salesCount" db:"sales_count"`
	TotalRevenue decimal.Decimal `json:"totalRevenue" db:"total_revenue"`
	RatingSum    int64           `json:"ratingSum" db:"rating_sum"`
	RatingCount  int64           `json:"ratingCount" db:"rating_count"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}
