package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/inventory"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

// currencyPlaces is the number of fractional digits a unit price may carry.
const currencyPlaces = 2

const maxIdempotencyKeyLen = 64

// Upper bounds follow the order_items and orders columns.
const maxLineQuantity = 100000

var (
	maxUnitPrice = decimal.RequireFromString("9999999999.99")
	maxTotal     = decimal.RequireFromString("999999999999.99")
)

// Line is one cart selection to settle. UnitPrice is the price the buyer saw
// and is what the order records.
type Line struct {
	CartItemID int64             `json:"cartItemId"`
	ProductID  int64             `json:"productId"`
	VariantID  *int64            `json:"variantId,omitempty"`
	SellerID   int64             `json:"sellerId"`
	UnitPrice  decimal.Decimal   `json:"unitPrice"`
	Quantity   int               `json:"quantity"`
	ImageRef   string            `json:"imageRef"`
	Attributes models.Attributes `json:"attributes,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Request is the input to Service.Checkout.
type Request struct {
	BuyerID        int64
	AddressID      *int64
	PaymentMethod  string
	SessionToken   *string
	IdempotencyKey string
	Lines          []Line
}

// Validate rejects a request that must not open a transaction.
func (r Request) Validate() error {
	if r.BuyerID <= 0 {
		return invalid("buyer id must be positive")
	}
	if r.AddressID != nil && *r.AddressID <= 0 {
		return invalid("address id must be positive")
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return invalid("payment method is required")
	}
	if len(r.IdempotencyKey) > maxIdempotencyKeyLen {
		return invalid("idempotency key longer than %d characters", maxIdempotencyKeyLen)
	}
	if len(r.Lines) == 0 {
		return invalid("at least one line is required")
	}

	seen := make(map[int64]bool, len(r.Lines))
	for i, l := range r.Lines {
		if l.CartItemID <= 0 || l.ProductID <= 0 || l.SellerID <= 0 {
			return invalid("line %d: cart item, product and seller ids must be positive", i)
		}
		if l.VariantID != nil && *l.VariantID <= 0 {
			return invalid("line %d: variant id must be positive", i)
		}
		if l.Quantity <= 0 || l.Quantity > maxLineQuantity {
			return invalid("line %d: quantity must be between 1 and %d, got %d", i, maxLineQuantity, l.Quantity)
		}
		if !l.UnitPrice.IsPositive() {
			return invalid("line %d: unit price must be positive, got %s", i, l.UnitPrice)
		}
		if l.UnitPrice.GreaterThan(maxUnitPrice) {
			return invalid("line %d: unit price %s exceeds %s", i, l.UnitPrice, maxUnitPrice)
		}
		if !l.UnitPrice.Equal(l.UnitPrice.Truncate(currencyPlaces)) {
			return invalid("line %d: unit price %s has more than %d decimal places", i, l.UnitPrice, currencyPlaces)
		}
		if seen[l.CartItemID] {
			return invalid("line %d: cart item %d appears twice", i, l.CartItemID)
		}
		seen[l.CartItemID] = true
	}
	if total := r.Total(); total.GreaterThan(maxTotal) {
		return invalid("order total %s exceeds %s", total, maxTotal)
	}
	return nil
}

// Total is the exact sum of every line's subtotal.
func (r Request) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// cartItem is the cart row the line claims to settle.
func (l Line) cartItem() models.CartItem {
	return models.CartItem{
		ID:        l.CartItemID,
		ProductID: l.ProductID,
		VariantID: l.VariantID,
		SellerID:  l.SellerID,
		Price:     l.UnitPrice,
		Quantity:  l.Quantity,
	}
}

// refs lists every stock counter the request touches.
func (r Request) refs() []inventory.Ref {
	refs := make([]inventory.Ref, 0, 2*len(r.Lines))
	for _, l := range r.Lines {
		refs = append(refs, inventory.ProductRef(l.ProductID))
		if l.VariantID != nil {
			refs = append(refs, inventory.VariantRef(*l.VariantID, l.ProductID))
		}
	}
	return refs
}
