package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/taptosell-checkout/internal/analytics"
)

// GetSalesAggregate is the handler for GET /v1/analytics/:scope/:id
// where scope is products, variants or sellers.
func (h *Handlers) GetSalesAggregate(c *gin.Context) {
	scope, err := analytics.ParseScope(c.Param("scope"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	key, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	agg, err := h.Store.Analytics().Get(c.Request.Context(), scope, key)
	if err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No sales recorded yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scope":        agg.Scope,
		"key":          agg.Key,
		"salesCount":   agg.SalesCount,
		"totalRevenue": agg.TotalRevenue.StringFixed(2),
		"ratingSum":    agg.RatingSum,
		"ratingCount":  agg.RatingCount,
		"updatedAt":    agg.UpdatedAt,
	})
}
