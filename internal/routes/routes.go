package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/01moynul/taptosell-checkout/internal/handlers"
	"github.com/01moynul/taptosell-checkout/internal/metrics"
	"github.com/01moynul/taptosell-checkout/internal/middleware"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	CORSOrigin string
	Tokens     middleware.TokenValidator
	Metrics    *metrics.ServerMetrics // nil disables request metrics
	Gatherer   prometheus.Gatherer    // nil disables /metrics
}

// CORSMiddleware tells the browser that it is safe for the storefront origin
// to send data to us.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Strictly allow ONLY the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 2. Allow the headers we actually use
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Idempotency-Key, X-Session-Token, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Session-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		// 3. Handle the "Preflight" OPTIONS request
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.Default()

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(opts.CORSOrigin))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
	}

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(opts.Tokens), middleware.SessionMiddleware())
		{
			auth.POST("/checkout", h.Checkout)

			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)

			auth.GET("/cart", h.GetCart)
			auth.POST("/cart/items", h.AddToCart)
			auth.DELETE("/cart/items/:id", h.DeleteCartItem)

			auth.GET("/analytics/:scope/:id", h.GetSalesAggregate)
		}
	}

	return router
}
