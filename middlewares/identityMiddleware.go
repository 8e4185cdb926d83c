package middlewares

import (
	"net/http"

	"github.com/Flabba2018/elkontroll-alver/utils"
	"github.com/gin-gonic/gin"
)

// IdentityMiddleware lifts the inspector identity headers into the request
// context. The service runs inside the kommune network behind the portal's
// login, so the headers are trusted as-is; any identity mechanism may sit in
// front.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader("X-User-Id"); id != "" {
			ctx = utils.SetUserIdInContext(ctx, id)
		}
		if name := c.GetHeader("X-User-Name"); name != "" {
			ctx = utils.SetUserNameInContext(ctx, name)
		}
		if role := c.GetHeader("X-User-Role"); role != "" {
			ctx = utils.SetUserRoleInContext(ctx, role)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity rejects requests with no inspector id. Mutating endpoints
// need a user for the audit trail.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "manglar brukaridentitet"})
			c.Abort()
			return
		}
		c.Next()
	}
}
