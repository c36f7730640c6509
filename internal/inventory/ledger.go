// Package inventory owns the per-product and per-variant stock counters.
//
// Stock only moves through Ledger.Decrement, which enforces a floor of zero:
// a request that would drive a counter negative is rejected whole.
package inventory

import (
	"context"
	"fmt"
	"sort"
)

type Kind string

const (
	KindProduct Kind = "product"
	KindVariant Kind = "variant"
)

// Ref identifies one stock counter. ProductID is the owning product of a
// variant and is ignored for products.
type Ref struct {
	Kind      Kind
	ID        int64
	ProductID int64
}

func ProductRef(id int64) Ref {
	return Ref{Kind: KindProduct, ID: id, ProductID: id}
}

func VariantRef(id, productID int64) Ref {
	return Ref{Kind: KindVariant, ID: id, ProductID: productID}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// Ledger is the stock counter store bound to one unit of work.
type Ledger interface {
	// Lock takes exclusive row locks on every ref, in Canonical order, and
	// fails with *NotFoundError for a missing product or a variant that does
	// not belong to its ProductID.
	Lock(ctx context.Context, refs []Ref) error
	// Decrement subtracts qty from the counter if at least qty is available,
	// otherwise it returns *InsufficientStockError and changes nothing.
	Decrement(ctx context.Context, ref Ref, qty int) error
}

// InsufficientStockError reports a decrement rejected by the floor check.
type InsufficientStockError struct {
	Ref       Ref
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Ref, e.Requested, e.Available)
}

// NotFoundError reports a stock counter that does not exist.
type NotFoundError struct {
	Ref Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Ref)
}

// Canonical returns the distinct refs ordered products-first, then by id.
// Every backend acquires locks in this order so two checkouts over the same
// rows always queue instead of deadlocking.
func Canonical(refs []Ref) []Ref {
	seen := make(map[Ref]bool, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		if r.Kind == KindProduct {
			r.ProductID = r.ID
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindProduct
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

func validQuantity(ref Ref, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("decrement %s: quantity must be positive, got %d", ref, qty)
	}
	return nil
}
