package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignHS256Token issues a token for subject the way the warehouse API's login
// endpoint does, valid for ttl (negative for an expired token)
func SignHS256Token(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// BearerHeader formats token as an Authorization header value
func BearerHeader(token string) string {
	return "Bearer " + token
}
