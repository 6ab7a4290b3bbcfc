package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/findthem/backend/internal/models"
)

// ContextPrincipal is the key for the resolved principal in gin context.
const ContextPrincipal = "principal"

// PrincipalResolver resolves a session token to a principal, or nil when the token is not usable.
type PrincipalResolver interface {
	ResolveCurrentPrincipal(ctx context.Context, token string) *models.Principal
}

// Session reads the session credential from the named cookie, falling back to a Bearer
// Authorization header, and stores the resolved principal in context. It never aborts:
// anonymous requests continue with no principal set and route guards decide.
func Session(resolver PrincipalResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token != "" {
			if p := resolver.ResolveCurrentPrincipal(c.Request.Context(), token); p != nil {
				c.Set(ContextPrincipal, p)
			}
		}
		c.Next()
	}
}

// TokenFromRequest returns the session token from cookie or Authorization header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// PrincipalFrom returns the principal set by Session, or nil for anonymous requests.
func PrincipalFrom(c *gin.Context) *models.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}
