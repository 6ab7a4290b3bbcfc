package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

// RequireAuth aborts with 401 when no principal was resolved.
func RequireAuth() gin.HandlerFunc {
	return RequireRole()
}

// RequireRole returns a middleware that allows only the given roles.
// With no roles it only requires an authenticated principal.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			response.Error(c, apperr.Unauthenticated())
			c.Abort()
			return
		}
		if len(roles) > 0 && !p.HasRole(roles...) {
			response.Error(c, apperr.Unauthorized(""))
			c.Abort()
			return
		}
		c.Next()
	}
}
