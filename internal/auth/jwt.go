package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 72 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and validates HS256 bearer tokens whose subject is the buyer id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens returns an error for an empty secret so a misconfigured server
// fails at startup instead of accepting forged tokens.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateToken creates a new JWT for a given user ID.
func (t *Tokens) GenerateToken(userID int64) (string, error) {
	// 1. Create the claims. "sub" is the standard claim for the user ID.
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(t.ttl).Unix(),
		"iat": now.Unix(),
	}

	// 2. Sign it with HS256 and our secret
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken parses and validates a JWT token string.
// It returns the user ID (subject) if the token is valid.
func (t *Tokens) ValidateToken(tokenString string) (int64, error) {
	// 1. Parse the token, rejecting anything not signed with HMAC.
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return 0, err // expired, malformed, bad signature
	}

	// 2. Get the user ID ("sub") from the claims.
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	userIDFloat, ok := claims["sub"].(float64)
	if !ok || userIDFloat <= 0 {
		return 0, errors.New("invalid subject claim")
	}
	// JSON numbers decode as float64
	return int64(userIDFloat), nil
}
