// Package eventlog is the append-only purchase event log read by the
// recommendation engine. Rows are never updated or deleted.
package eventlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

// Sink appends events inside the caller's unit of work.
type Sink interface {
	Append(ctx context.Context, events []models.EventLog) error
}

// Batch stages events in submission order until they are flushed together.
type Batch struct {
	events []models.EventLog
}

func (b *Batch) Add(e models.EventLog) {
	b.events = append(b.events, e)
}

func (b *Batch) Len() int {
	return len(b.events)
}

func (b *Batch) Events() []models.EventLog {
	return b.events
}

// Flush appends every staged event through sink. An empty batch is a no-op.
func (b *Batch) Flush(ctx context.Context, sink Sink) error {
	if len(b.events) == 0 {
		return nil
	}
	return sink.Append(ctx, b.events)
}

// SQLSink writes to the MySQL 'event_logs' table.
type SQLSink struct {
	db database.DBTX
}

func NewSQLSink(db database.DBTX) *SQLSink {
	return &SQLSink{db: db}
}

const eventColumns = 8

// Append inserts all events with one multi-row INSERT.
func (s *SQLSink) Append(ctx context.Context, events []models.EventLog) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]string, len(events))
	args := make([]any, 0, len(events)*eventColumns)
	for i, e := range events {
		rows[i] = "(" + database.InPlaceholders(eventColumns) + ")"
		args = append(args,
			e.OccurredAt, e.EventType, e.ProductID, e.CategoryID, e.BrandID, e.Price, e.UserID, e.SessionToken,
		)
	}

	query := `
		INSERT INTO event_logs
		(occurred_at, event_type, product_id, category_id, brand_id, price, user_id, session_token)
		VALUES ` + strings.Join(rows, ", ")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append %d events: %w", len(events), err)
	}
	return nil
}
