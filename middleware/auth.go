package middleware

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/stockmaster-web/config"
)

// Context keys set by the authentication middleware
const (
	ContextUserID      = "user_id"
	ContextAccessToken = "access_token"
)

const invalidTokenBody = `{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`

// Authenticate returns the middleware for cfg.AuthMode
func Authenticate(cfg *config.Config) (gin.HandlerFunc, error) {
	switch cfg.AuthMode {
	case config.AuthModeDisabled:
		return DevSubject(cfg.AuthDevSubject), nil
	case config.AuthModeAuth0:
		return EnsureValidToken(cfg)
	case config.AuthModeHS256:
		return EnsureValidHS256Token(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// DevSubject authenticates every request as subject. Only for local development.
func DevSubject(subject string) gin.HandlerFunc {
	log.Printf("WARNING: authentication is disabled, all requests run as %q", subject)
	return func(c *gin.Context) {
		c.Set(ContextUserID, subject)
		if token := bearerToken(c.Request); token != "" {
			c.Set(ContextAccessToken, token)
		}
		c.Next()
	}
}

// EnsureValidToken is a middleware that will check the validity of an Auth0 JWT.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("Encountered error while validating JWT: %v", err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(invalidTokenBody)); writeErr != nil {
			log.Printf("Failed to write error response: %v", writeErr)
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set(ContextUserID, token.RegisteredClaims.Subject)
			c.Set(ContextAccessToken, bearerToken(r))
			c.Request = r

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}, nil
}

// EnsureValidHS256Token checks tokens signed with a shared HMAC secret, as
// issued by the warehouse API's own login endpoint.
func EnsureValidHS256Token(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization header must be 'Bearer <token>'")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Printf("Encountered error while validating JWT: %v", err)
			abortUnauthorized(c, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}
		if claims.Subject == "" {
			abortUnauthorized(c, "INVALID_TOKEN", "Token has no subject")
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextAccessToken, raw)
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetAccessToken returns the caller's bearer token, or "" when there is none
func GetAccessToken(c *gin.Context) string {
	return c.GetString(ContextAccessToken)
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
