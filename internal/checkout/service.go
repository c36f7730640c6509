// Package checkout settles a cart selection into an order. Stock, analytics,
// the purchase event log and the cart all change in the same unit of work as
// the order, so a checkout either lands completely or leaves no trace.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/eventlog"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/logging"
	"github.com/01moynul/taptosell-checkout/internal/metrics"
	"github.com/01moynul/taptosell-checkout/internal/models"
	"github.com/01moynul/taptosell-checkout/internal/orders"
	"github.com/01moynul/taptosell-checkout/internal/store"
)

const DefaultTimeout = 5 * time.Second

// Result is what a successful checkout returns. Replayed is set when the
// order was created by an earlier request with the same idempotency key.
type Result struct {
	OrderID     int64           `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Replayed    bool            `json:"replayed,omitempty"`
}

type Service struct {
	store   store.Store
	timeout time.Duration
	metrics *metrics.CheckoutMetrics
	now     func() time.Time
}

// NewService builds a Service. A non-positive timeout means DefaultTimeout;
// m may be nil.
func NewService(s store.Store, timeout time.Duration, m *metrics.CheckoutMetrics) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{store: s, timeout: timeout, metrics: m, now: time.Now}
}

// Checkout settles req. Every failure is a *Error and leaves the store as it
// was before the call.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.checkout(ctx, req)
	s.record(req, res, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) checkout(ctx context.Context, req Request) (*Result, error) {
	// 1. --- Validate before touching storage ---
	if err := req.Validate(); err != nil {
		return nil, err
	}
	total := req.Total()

	// 2. --- Answer a retried request from the order it already created ---
	if req.IdempotencyKey != "" {
		res, found, err := s.replay(ctx, req, total)
		if err != nil || found {
			return res, err
		}
	}

	// 3. --- Settle under the transaction deadline ---
	txCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orderID, err := s.settle(txCtx, req, total)
	if errors.Is(err, orders.ErrDuplicateKey) {
		// A concurrent request with the same key committed first.
		res, found, err := s.replay(ctx, req, total)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, storageFailure("replay", orders.ErrDuplicateKey)
		}
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{OrderID: orderID, TotalAmount: total}, nil
}

func (s *Service) replay(ctx context.Context, req Request, total decimal.Decimal) (*Result, bool, error) {
	order, err := s.store.Orders().FindByIdempotencyKey(ctx, req.BuyerID, req.IdempotencyKey)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageFailure("find order by idempotency key", err)
	}
	if !order.TotalAmount.Equal(total) {
		return nil, false, invalid("idempotency key %q was used for a different order", req.IdempotencyKey)
	}
	return &Result{OrderID: order.ID, TotalAmount: order.TotalAmount, Replayed: true}, true, nil
}

// settle runs the unit of work. It returns orders.ErrDuplicateKey unwrapped
// so the caller can replay; every other failure is a *Error.
func (s *Service) settle(ctx context.Context, req Request, total decimal.Decimal) (int64, error) {
	now := s.now()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, storageFailure("begin", err)
	}
	defer tx.Rollback()

	// Lock all stock rows first, in canonical order, so checkouts sharing
	// rows queue instead of deadlocking.
	if err := tx.Ledger().Lock(ctx, req.refs()); err != nil {
		return 0, classify("lock stock", err)
	}

	order := &models.Order{
		UserID:        req.BuyerID,
		AddressID:     req.AddressID,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		if errors.Is(err, orders.ErrDuplicateKey) {
			return 0, err
		}
		return 0, classify("create order", err)
	}

	var events eventlog.Batch
	attributions := make(map[int64]models.Attribution)

	for _, line := range req.Lines {
		// a. Attribution is best effort.
		attr, ok := attributions[line.ProductID]
		if !ok {
			attr, err = tx.Catalog().Attribution(ctx, line.ProductID)
			if errors.Is(err, catalog.ErrNotFound) {
				attr = models.Attribution{}
			} else if err != nil {
				return 0, classify("read attribution", err)
			}
			attributions[line.ProductID] = attr
		}

		// b. Snapshot the line into order_items
		subtotal := line.Subtotal()
		item := &models.OrderItem{
			OrderID:    order.ID,
			ProductID:  line.ProductID,
			VariantID:  line.VariantID,
			SellerID:   line.SellerID,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Subtotal:   subtotal,
			ImageURL:   line.ImageRef,
			Attributes: line.Attributes,
			Status:     models.OrderItemPending,
			CreatedAt:  now,
		}
		if err := tx.Orders().AddItem(ctx, item); err != nil {
			return 0, classify("add order item", err)
		}

		// c. Stock: the variant if any, then always the product
		if line.VariantID != nil {
			if err := tx.Ledger().Decrement(ctx, inventory.VariantRef(*line.VariantID, line.ProductID), line.Quantity); err != nil {
				return 0, classify("decrement variant stock", err)
			}
		}
		if err := tx.Ledger().Decrement(ctx, inventory.ProductRef(line.ProductID), line.Quantity); err != nil {
			return 0, classify("decrement product stock", err)
		}

		// d. Analytics
		agg := tx.Analytics()
		if err := agg.RecordSale(ctx, analytics.ScopeProduct, line.ProductID, line.Quantity, subtotal); err != nil {
			return 0, classify("record product sale", err)
		}
		if line.VariantID != nil {
			if err := agg.RecordSale(ctx, analytics.ScopeVariant, *line.VariantID, line.Quantity, subtotal); err != nil {
				return 0, classify("record variant sale", err)
			}
		}
		if err := agg.RecordSale(ctx, analytics.ScopeSeller, line.SellerID, line.Quantity, subtotal); err != nil {
			return 0, classify("record seller sale", err)
		}

		// e. Stage the purchase event
		events.Add(models.EventLog{
			OccurredAt:   now,
			EventType:    models.EventTypePurchase,
			ProductID:    line.ProductID,
			CategoryID:   attr.CategoryID,
			BrandID:      attr.BrandID,
			Price:        line.UnitPrice,
			UserID:       req.BuyerID,
			SessionToken: req.SessionToken,
		})

		// f. Consume the cart line, which must hold exactly what was ordered
		if err := tx.Cart().Consume(ctx, req.BuyerID, line.cartItem()); err != nil {
			return 0, classifyCartLine(line.CartItemID, err)
		}
	}

	// 5. --- Write the staged events in one batch ---
	if err := events.Flush(ctx, tx.Events()); err != nil {
		return 0, classify("append events", err)
	}

	// 6. --- Commit ---
	if err := tx.Commit(); err != nil {
		if errors.Is(err, orders.ErrDuplicateKey) {
			return 0, err
		}
		return 0, storageFailure("commit", err)
	}
	return order.ID, nil
}

func (s *Service) record(req Request, res *Result, err error, elapsed time.Duration) {
	fields := logging.Fields{
		Service:    "checkout",
		UserID:     req.BuyerID,
		DurationMS: elapsed.Milliseconds(),
	}

	outcome := "committed"
	switch {
	case err != nil:
		var ce *Error
		if errors.As(err, &ce) {
			outcome = string(ce.Kind)
		} else {
			outcome = string(KindStorageFailure)
		}
		if database.IsLockConflict(err) {
			fields.Step = "lock_conflict"
		}
		fields.Error = err.Error()
	case res.Replayed:
		outcome = "replayed"
		fields.OrderID = res.OrderID
	default:
		fields.OrderID = res.OrderID
	}
	fields.Status = outcome

	s.metrics.Observe(outcome, elapsed)
	logging.Log(fields)
}
