package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
)

// IsAdmin reports whether the caller may use admin endpoints: either the
// token carries the admin role or the user id is on the configured list.
func IsAdmin(id *Identity, adminUserIDs []string) bool {
	if id == nil {
		return false
	}
	if id.Role == RoleAdmin {
		return true
	}
	for _, adminID := range adminUserIDs {
		if adminID != "" && id.UserID == adminID {
			return true
		}
	}
	return false
}

// RequireAdmin rejects callers that are not admins. It must run after
// JWTAuth.
func RequireAdmin(adminUserIDs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(GetIdentity(c), adminUserIDs) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "forbidden",
				Message: "Admin access required",
				Code:    http.StatusForbidden,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
