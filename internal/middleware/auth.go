package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/utils"
)

const capabilityKey = "capability"

// AuthMiddleware verifies access tokens issued by the identity service and
// adds the caller's capability to the context
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required", "kind": "unauthorized"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "kind": "unauthorized"})
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("is_admin", claims.IsAdmin)
		c.Set(capabilityKey, auth.Capability{UserID: claims.UserID, Admin: claims.IsAdmin})

		c.Next()
	}
}

// AdminMiddleware ensures the caller carries the admin capability
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CapabilityFrom(c).Admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required", "kind": "unauthorized", "code": "admin_required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CapabilityFrom returns the capability set by AuthMiddleware; the zero
// value when the request is unauthenticated
func CapabilityFrom(c *gin.Context) auth.Capability {
	if v, ok := c.Get(capabilityKey); ok {
		if capability, ok := v.(auth.Capability); ok {
			return capability
		}
	}
	return auth.Capability{}
}

// UserIDFrom returns the authenticated user id
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	id := CapabilityFrom(c).UserID
	return id, id != uuid.Nil
}

// extractToken gets the token from the Authorization header
func extractToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
