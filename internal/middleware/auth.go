package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/01moynul/taptosell-checkout/internal/auth"
)

// SessionHeader carries the storefront session used to attribute purchase
// events. When absent a fresh one is minted and echoed back.
const SessionHeader = "X-Session-Token"

// TokenValidator is satisfied by *auth.Tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (int64, error)
}

var _ TokenValidator = (*auth.Tokens)(nil)

// AuthMiddleware creates a gin.HandlerFunc that acts as our "security guard".
// On success the buyer id is available as c.Get("userID").
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			c.Abort()
			return
		}

		// 2. --- Validate Token ---
		userID, err := tokens.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. --- Success ---
		c.Set("userID", userID)
		c.Next()
	}
}

// SessionMiddleware stores the caller's session token under "sessionToken",
// minting one when the request has none.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := strings.TrimSpace(c.GetHeader(SessionHeader))
		if session == "" || len(session) > 128 {
			session = uuid.NewString()
		}
		c.Set("sessionToken", session)
		c.Header(SessionHeader, session)
		c.Next()
	}
}
