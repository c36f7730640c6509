package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/01moynul/taptosell-checkout/internal/cart"
	"github.com/01moynul/taptosell-checkout/internal/catalog"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

//
// --- Cart Handlers ---
//

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID  int64             `json:"productId" binding:"required,gt=0"`
	VariantID  *int64            `json:"variantId" binding:"omitempty,gt=0"`
	Quantity   int               `json:"quantity" binding:"required,gt=0,lte=100000"`
	Attributes models.Attributes `json:"attributes"`
}

// AddToCart is the handler for POST /v1/cart/items
// The line is priced from the catalog at the moment it is added.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	// 1. --- Look up the product (and variant) ---
	product, err := h.Store.Catalog().Product(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	price, stock := product.Price, product.StockQuantity
	attributes := input.Attributes
	if input.VariantID != nil {
		variant, err := h.Store.Catalog().Variant(ctx, *input.VariantID)
		if err != nil || variant.ProductID != product.ID {
			if err == nil || errors.Is(err, catalog.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Variant not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		price = variant.Price
		if variant.StockQuantity < stock {
			stock = variant.StockQuantity
		}
		if len(attributes) == 0 {
			attributes = variant.Options
		}
	}

	// 2. --- Stock pre-check (checkout re-checks under lock) ---
	if stock < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock", "available": stock})
		return
	}

	// 3. --- Insert ---
	item := &models.CartItem{
		UserID:     buyerID,
		ProductID:  product.ID,
		VariantID:  input.VariantID,
		SellerID:   product.SellerID,
		Price:      price,
		Quantity:   input.Quantity,
		ImageURL:   product.ImageURL,
		Attributes: attributes,
	}
	if err := h.Store.Cart().Add(ctx, item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart", "item": item})
}

// GetCart is the handler for GET /v1/cart
// It retrieves the full contents of the user's cart.
func (h *Handlers) GetCart(c *gin.Context) {
	// 1. --- Get Buyer ID ---
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)

	// 2. --- Fetch items ---
	items, err := h.Store.Cart().List(c.Request.Context(), buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get cart items"})
		return
	}

	// 3. --- Calculate Total ---
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"subtotal": total.StringFixed(2),
	})
}

// DeleteCartItem is the handler for DELETE /v1/cart/items/:id
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)
	cartItemID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	if err := h.Store.Cart().Delete(c.Request.Context(), buyerID, cartItemID); err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}
