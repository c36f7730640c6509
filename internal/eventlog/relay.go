package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/logging"
	"github.com/01moynul/taptosell-checkout/internal/metrics"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

// DefaultCursor names the relay's progress row in 'event_relay_cursors'.
const DefaultCursor = "recommendation"

// eventNamespace seeds the deterministic message ids, so a redelivered event
// carries the same id and consumers can drop the duplicate.
var eventNamespace = uuid.MustParse("6f1c3a52-8d0e-4c1f-9a57-2b1de0c4a9e3")

// Source reads committed events in id order and persists relay progress.
type Source interface {
	After(ctx context.Context, afterID int64, limit int) ([]models.EventLog, error)
	Cursor(ctx context.Context, name string) (int64, error)
	SaveCursor(ctx context.Context, name string, lastID int64) error
}

// Publisher hands events to the downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, events []models.EventLog) error
}

// Relay forwards new event_logs rows to a Publisher with at-least-once
// delivery: the cursor only advances after a successful publish.
//
// AUTO_INCREMENT ids are handed out at insert time but become visible at
// commit, so a lower id can appear after a higher one. Rows younger than
// SettleDelay are held back, and a batch stops at the first of them, which
// keeps the cursor from passing an id that may still commit. SettleDelay
// must exceed the longest checkout transaction.
type Relay struct {
	Source      Source
	Publisher   Publisher
	Name        string
	BatchSize   int
	Interval    time.Duration
	SettleDelay time.Duration
	Metrics     *metrics.RelayMetrics
	Now         func() time.Time
}

// settled trims events to the prefix that is older than SettleDelay.
func (r *Relay) settled(events []models.EventLog) []models.EventLog {
	if r.SettleDelay <= 0 {
		return events
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.SettleDelay)
	for i, e := range events {
		if e.OccurredAt.After(cutoff) {
			return events[:i]
		}
	}
	return events
}

// RunOnce publishes at most one batch and returns how many events it moved.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	name := r.Name
	if name == "" {
		name = DefaultCursor
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}

	cursor, err := r.Source.Cursor(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("read relay cursor: %w", err)
	}
	events, err := r.Source.After(ctx, cursor, batch)
	if err != nil {
		return 0, fmt.Errorf("read events after %d: %w", cursor, err)
	}
	events = r.settled(events)
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.Publisher.Publish(ctx, events); err != nil {
		return 0, fmt.Errorf("publish %d events: %w", len(events), err)
	}
	last := events[len(events)-1].ID
	if err := r.Source.SaveCursor(ctx, name, last); err != nil {
		return 0, fmt.Errorf("save relay cursor %d: %w", last, err)
	}
	return len(events), nil
}

// Run drains the log every Interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Log(logging.Fields{Service: "event-relay", Status: "started", Message: "forwarding purchase events"})
	for {
		select {
		case <-ctx.Done():
			logging.Log(logging.Fields{Service: "event-relay", Status: "stopped"})
			return
		case <-ticker.C:
		}

		// Keep draining while full batches come back.
		for {
			start := time.Now()
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.Metrics.IncFailure()
				logging.Log(logging.Fields{Service: "event-relay", Status: "error", Error: err.Error()})
				break
			}
			if n == 0 {
				break
			}
			r.Metrics.AddPublished(n)
			logging.Log(logging.Fields{
				Service:    "event-relay",
				Status:     "published",
				DurationMS: time.Since(start).Milliseconds(),
				Message:    strconv.Itoa(n) + " events",
			})
			if n < r.BatchSize {
				break
			}
		}
	}
}

// SQLSource reads 'event_logs' and stores progress in 'event_relay_cursors'.
type SQLSource struct {
	db database.DBTX
}

func NewSQLSource(db database.DBTX) *SQLSource {
	return &SQLSource{db: db}
}

func (s *SQLSource) After(ctx context.Context, afterID int64, limit int) ([]models.EventLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, event_type, product_id, category_id, brand_id, price, user_id, session_token
		FROM event_logs
		WHERE id > ?
		ORDER BY id
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EventLog
	for rows.Next() {
		var e models.EventLog
		var category, brand sql.NullInt64
		var session sql.NullString
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.EventType, &e.ProductID, &category, &brand, &e.Price, &e.UserID, &session); err != nil {
			return nil, err
		}
		if category.Valid {
			e.CategoryID = &category.Int64
		}
		if brand.Valid {
			e.BrandID = &brand.Int64
		}
		if session.Valid {
			e.SessionToken = &session.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLSource) Cursor(ctx context.Context, name string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, "SELECT last_event_id FROM event_relay_cursors WHERE name = ?", name).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

func (s *SQLSource) SaveCursor(ctx context.Context, name string, lastID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_relay_cursors (name, last_event_id, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE last_event_id = VALUES(last_event_id), updated_at = VALUES(updated_at)`,
		name, lastID, time.Now())
	return err
}

// Message is the JSON payload published per event.
type Message struct {
	MessageID    string    `json:"messageId"`
	EventID      int64     `json:"eventId"`
	EventType    string    `json:"eventType"`
	OccurredAt   time.Time `json:"occurredAt"`
	ProductID    int64     `json:"productId"`
	CategoryID   *int64    `json:"categoryId,omitempty"`
	BrandID      *int64    `json:"brandId,omitempty"`
	Price        string    `json:"price"`
	UserID       int64     `json:"userId"`
	SessionToken *string   `json:"sessionToken,omitempty"`
}

func NewMessage(e models.EventLog) Message {
	return Message{
		MessageID:    uuid.NewSHA1(eventNamespace, []byte("event_logs/"+strconv.FormatInt(e.ID, 10))).String(),
		EventID:      e.ID,
		EventType:    e.EventType,
		OccurredAt:   e.OccurredAt.UTC(),
		ProductID:    e.ProductID,
		CategoryID:   e.CategoryID,
		BrandID:      e.BrandID,
		Price:        e.Price.StringFixed(2),
		UserID:       e.UserID,
		SessionToken: e.SessionToken,
	}
}

// KafkaPublisher writes one message per event, keyed by product id so a
// product's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns nil when brokersCSV names no broker.
func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []models.EventLog) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(NewMessage(e))
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.ProductID, 10)),
			Value: data,
			Time:  e.OccurredAt.UTC(),
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
