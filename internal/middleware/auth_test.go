package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubTokens map[string]int64

func (s stubTokens) ValidateToken(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(), AuthMiddleware(stubTokens{"good": 7}))
	r.GET("/me", func(c *gin.Context) {
		userID, _ := c.Get("userID")
		session, _ := c.Get("sessionToken")
		c.JSON(http.StatusOK, gin.H{"userId": userID, "session": session})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cases := map[string]struct {
		header string
		status int
	}{
		"missing header": {"", http.StatusUnauthorized},
		"wrong scheme":   {"Basic good", http.StatusUnauthorized},
		"bad token":      {"Bearer nope", http.StatusUnauthorized},
		"valid":          {"Bearer good", http.StatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestSessionTokenIsKeptOrMinted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(SessionHeader, "guest-123")
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, "guest-123", w.Header().Get(SessionHeader))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(SessionHeader), 36)
}
