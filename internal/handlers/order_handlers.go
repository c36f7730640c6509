package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/taptosell-checkout/internal/orders"
)

//
// --- Order Retrieval Handlers ---
//

// GetMyOrders is the handler for GET /v1/orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	// 1. --- Get Buyer ID ---
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)

	// 2. --- Query Orders ---
	list, err := h.Store.Orders().ListByUser(c.Request.Context(), buyerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	// 3. --- Return Response ---
	c.JSON(http.StatusOK, gin.H{
		"orders": list,
	})
}

// GetOrderDetails is the handler for GET /v1/orders/:id
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	// 1. --- Get IDs ---
	userID_raw, _ := c.Get("userID")
	buyerID := userID_raw.(int64)
	orderID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	// 2. --- Fetch Order & Verify Ownership ---
	order, err := h.Store.Orders().Get(c.Request.Context(), buyerID, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// 3. --- Fetch Order Items ---
	items, err := h.Store.Orders().Items(c.Request.Context(), order.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order items"})
		return
	}

	// 4. --- Return Combined Response ---
	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}
