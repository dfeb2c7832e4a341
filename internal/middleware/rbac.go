package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
	"github.com/noah-isme/attendance-core/pkg/response"
)

// Require rejects callers whose role holds no grant for any of the operations.
// Session-level restrictions are left to the services.
func Require(ops ...access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		for _, op := range ops {
			if access.Allowed(identity.Role, op) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "operation not permitted for role "+string(identity.Role)))
	}
}

// RequireRoles admits only the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[identity.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
