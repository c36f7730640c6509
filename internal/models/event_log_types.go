package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventTypePurchase is the only event type checkout writes.
const EventTypePurchase = "purchase"

// EventLog is the model for the append-only 'event_logs' table,
// consumed by the recommendation engine.
type EventLog struct {
	ID           int64           `json:"id" db:"id"`
	OccurredAt   time.Time       `json:"occurredAt" db:"occurred_at"`
	EventType    string          `json:"eventType" db:"event_type"`
	ProductID    int64           `json:"productId" db:"product_id"`
	CategoryID   *int64          `json:"categoryId,omitempty" db:"category_id"`
	BrandID      *int64          `json:"brandId,omitempty" db:"brand_id"`
	Price        decimal.Decimal `json:"price" db:"price"`
	UserID       int64           `json:"userId" db:"user_id"`
	SessionToken *string         `json:"sessionToken,omitempty" db:"session_token"`
}
