package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/taptosell-checkout/internal/checkout"
	"github.com/01moynul/taptosell-checkout/internal/logging"
)

// IdempotencyHeader lets a client retry a checkout without settling twice.
const IdempotencyHeader = "Idempotency-Key"

// CheckoutInput defines the JSON for POST /v1/checkout.
// Exactly one of Lines or CartItemIDs must be given. CartItemIDs settles those
// rows of the buyer's cart at their stored price; explicit Lines must match
// the cart rows they name.
type CheckoutInput struct {
	AddressID     *int64          `json:"addressId"`
	PaymentMethod string          `json:"paymentMethod"`
	Lines         []checkout.Line `json:"lines"`
	CartItemIDs   []int64         `json:"cartItemIds"`
}

// Checkout is the handler for POST /v1/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	// 1. --- Get Buyer ID & Session ---
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)

	var session *string
	if raw, ok := c.Get("sessionToken"); ok {
		if s, _ := raw.(string); s != "" {
			session = &s
		}
	}

	// 2. --- Bind Input ---
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error(), "kind": checkout.KindInvalidRequest})
		return
	}

	if len(input.Lines) > 0 && len(input.CartItemIDs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Send either lines or cartItemIds, not both", "kind": checkout.KindInvalidRequest})
		return
	}

	lines := input.Lines
	if len(input.CartItemIDs) > 0 {
		var err error
		lines, err = h.linesFromCart(c, buyerID, input.CartItemIDs)
		if err != nil {
			writeCheckoutError(c, err)
			return
		}
	}

	// 3. --- Settle ---
	res, err := h.CheckoutService.Checkout(c.Request.Context(), checkout.Request{
		BuyerID:        buyerID,
		AddressID:      input.AddressID,
		PaymentMethod:  input.PaymentMethod,
		SessionToken:   session,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(IdempotencyHeader)),
		Lines:          lines,
	})
	if err != nil {
		writeCheckoutError(c, err)
		return
	}

	// 4. --- Send Success Response ---
	status := http.StatusCreated
	body := gin.H{
		"message":     "Order created successfully",
		"orderId":     res.OrderID,
		"totalAmount": res.TotalAmount.StringFixed(2),
	}
	if res.Replayed {
		status = http.StatusOK
		body["message"] = "Order already created for this request"
		body["replayed"] = true
	}
	c.JSON(status, body)
}

// linesFromCart turns the selected cart rows into checkout lines, keeping the
// order of ids. An id the buyer does not own is reported as a missing cart item.
func (h *Handlers) linesFromCart(c *gin.Context, buyerID int64, ids []int64) ([]checkout.Line, error) {
	items, err := h.Store.Cart().List(c.Request.Context(), buyerID)
	if err != nil {
		return nil, &checkout.Error{Kind: checkout.KindStorageFailure, Err: err}
	}

	byID := make(map[int64]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	lines := make([]checkout.Line, 0, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			return nil, &checkout.Error{Kind: checkout.KindNotFound, Entity: "cart_item", EntityID: id}
		}
		item := items[i]
		lines = append(lines, checkout.Line{
			CartItemID: item.ID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			SellerID:   item.SellerID,
			UnitPrice:  item.Price,
			Quantity:   item.Quantity,
			ImageRef:   item.ImageURL,
			Attributes: item.Attributes,
		})
	}
	return lines, nil
}

func writeCheckoutError(c *gin.Context, err error) {
	var ce *checkout.Error
	if !errors.As(err, &ce) {
		logging.Log(logging.Fields{Service: "api", Step: "checkout", Status: "unexpected_error", Error: err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed"})
		return
	}

	switch ce.Kind {
	case checkout.KindInvalidRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": ce.Error(), "kind": ce.Kind})
	case checkout.KindInsufficientStock:
		c.JSON(http.StatusConflict, gin.H{
			"error":     ce.Error(),
			"kind":      ce.Kind,
			"entity":    ce.Entity,
			"entityId":  ce.EntityID,
			"available": ce.Available,
		})
	case checkout.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"error":    ce.Error(),
			"kind":     ce.Kind,
			"entity":   ce.Entity,
			"entityId": ce.EntityID,
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Checkout could not be completed, please retry",
			"kind":      checkout.KindStorageFailure,
			"retryable": ce.Retryable(),
		})
	}
}
