package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/communa-labs/ticketing/internal/domain"
)

// Context keys set by the identity middleware
const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
)

// Identity extracts the caller identity established by the upstream
// gateway from the X-User-ID and X-User-Role headers. Requests without
// an identity pass through; handlers that need one reject them.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set(ContextUserIDKey, userID)
		}

		role := domain.Role(c.GetHeader("X-User-Role"))
		if !role.IsValid() {
			role = domain.RoleAttendee
		}
		c.Set(ContextRoleKey, string(role))

		c.Next()
	}
}

// GetUserID returns the authenticated user ID from the gin context
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextUserIDKey)
	return userID, userID != ""
}

// GetRole returns the caller's role from the gin context
func GetRole(c *gin.Context) domain.Role {
	role := domain.Role(c.GetString(ContextRoleKey))
	if !role.IsValid() {
		return domain.RoleAttendee
	}
	return role
}

// GetActor returns the authenticated actor from the gin context.
// The second return is false when no identity was established.
func GetActor(c *gin.Context) (domain.Actor, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, Role: GetRole(c)}, true
}
