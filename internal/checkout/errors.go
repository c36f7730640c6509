package checkout

import (
	"errors"
	"fmt"

	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/inventory"
)

type Kind string

const (
	KindInvalidRequest    Kind = "invalid_request"
	KindInsufficientStock Kind = "insufficient_stock"
	KindNotFound          Kind = "not_found"
	KindStorageFailure    Kind = "storage_failure"
)

// Error is the only error type Checkout returns. Entity and EntityID name the
// offending row for stock and not-found failures; Available is set for stock
// failures only.
type Error struct {
	Kind      Kind
	Entity    string
	EntityID  int64
	Available int
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock for %s %d: %d available", e.Entity, e.EntityID, e.Available)
	case KindNotFound:
		return fmt.Sprintf("%s %d not found", e.Entity, e.EntityID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether resubmitting the identical request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindStorageFailure
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Err: fmt.Errorf(format, args...)}
}

func storageFailure(step string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Err: fmt.Errorf("%s: %w", step, err)}
}

// classify turns a collaborator error into a checkout *Error. Anything that is
// not a known domain failure is a storage failure, including deadlocks and
// an expired deadline.
func classify(step string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var insufficient *inventory.InsufficientStockError
	if errors.As(err, &insufficient) {
		return &Error{
			Kind:      KindInsufficientStock,
			Entity:    string(insufficient.Ref.Kind),
			EntityID:  insufficient.Ref.ID,
			Available: insufficient.Available,
			Err:       err,
		}
	}
	var missing *inventory.NotFoundError
	if errors.As(err, &missing) {
		return &Error{Kind: KindNotFound, Entity: string(missing.Ref.Kind), EntityID: missing.Ref.ID, Err: err}
	}
	return storageFailure(step, err)
}

func classifyCartLine(id int64, err error) *Error {
	if errors.Is(err, cart.ErrNotFound) {
		return &Error{Kind: KindNotFound, Entity: "cart_item", EntityID: id, Err: err}
	}
	if errors.Is(err, cart.ErrMismatch) {
		return &Error{Kind: KindInvalidRequest, Entity: "cart_item", EntityID: id, Err: err}
	}
	return classify("delete cart item", err)
}
