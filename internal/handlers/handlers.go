package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/taptosell-checkout/internal/checkout"
	"github.com/01moynul/taptosell-checkout/internal/store"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Store           store.Store       // Committed reads and cart edits
	CheckoutService *checkout.Service // Settlement
}

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
