// Package middleware provides HTTP middleware for the API.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing. This is similar to Express.js
// middleware, but with explicit control flow.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
// Go Pattern: Use unexported types for context keys so other packages
// can't accidentally overwrite your values.
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller, taken from the token claims.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// GetIdentity retrieves the authenticated caller from the request context.
// Call this in your handlers after the auth middleware has run.
func GetIdentity(c *gin.Context) *Identity {
	val, exists := c.Get(string(identityContextKey))
	if !exists {
		return nil
	}
	// Go Pattern: Type assertion with the comma-ok idiom won't panic if the
	// stored value has the wrong type.
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}

// UserID returns the authenticated user's id, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}

// SetIdentity stores id in the context. Tests use it to skip token parsing.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(string(identityContextKey), id)
}

// bearerToken reads the token from the Authorization header. Browsers can't
// set headers on a websocket handshake, so the token query parameter is
// accepted as well.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

func unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: msg,
		Code:    http.StatusUnauthorized,
	})
	c.Abort() // Stop the middleware chain; don't call the handler
}
