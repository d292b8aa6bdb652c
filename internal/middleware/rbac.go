package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/response"
)

// RequireRoles allows only the listed roles through.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := roleFromContext(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication context"))
			c.Abort()
			return
		}
		if _, permitted := allowed[role]; !permitted {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role is not permitted to access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAction gates a route on the access policy rather than a role list.
// The policy is recomputed per request from the authenticated role.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := roleFromContext(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication context"))
			c.Abort()
			return
		}
		if !policy.Allowed(role, action) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "action is not permitted for this role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func roleFromContext(c *gin.Context) (models.UserRole, bool) {
	value, exists := c.Get(ContextKeyRole)
	if !exists {
		return "", false
	}
	role, ok := value.(models.UserRole)
	return role, ok
}
