package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Methods the API serves to browsers. Staff writes are POST or PATCH only.
const corsAllowMethods = "GET, POST, PATCH, OPTIONS"

// Origins is the browser origin policy shared by CORS and the alerts websocket.
// An empty set or "*" admits any origin.
type Origins map[string]bool

// ParseOrigins splits a comma-separated origin list such as "https://findthem.org,http://localhost:3000".
func ParseOrigins(s string) Origins {
	o := make(Origins)
	for _, part := range strings.Split(strings.TrimSpace(s), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			o[part] = true
		}
	}
	return o
}

// Any reports whether every origin is admitted.
func (o Origins) Any() bool {
	return len(o) == 0 || o["*"]
}

// Allows reports whether a request from origin is admitted. Requests without an Origin header
// are not cross-origin and always pass.
func (o Origins) Allows(origin string) bool {
	return origin == "" || o.Any() || o[origin]
}

// CORS sets the cross-origin headers for the dashboard and public site.
// Listed origins get credentialed responses so the browser sends the session cookie.
// A wildcard policy never does; staff must then use the Authorization header.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := ParseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origins.Any():
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && origins[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		default:
			origin = ""
		}
		if origins.Any() || origin != "" {
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
