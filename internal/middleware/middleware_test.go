package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findthem/backend/internal/models"
)

type staticResolver map[string]*models.Principal

func (s staticResolver) ResolveCurrentPrincipal(_ context.Context, token string) *models.Principal {
	return s[token]
}

func init() { gin.SetMode(gin.TestMode) }

func newRouter(resolver PrincipalResolver, guard gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Session(resolver, "auth-token"))
	r.GET("/x", guard, func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(p.Role))
	})
	return r
}

func do(r http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAnonymousContinues(t *testing.T) {
	r := newRouter(staticResolver{}, func(c *gin.Context) { c.Next() })
	w := do(r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestSessionCookieAndBearer(t *testing.T) {
	res := staticResolver{
		"cookie-token": {UserID: uuid.New(), Role: models.RolePolice},
		"header-token": {UserID: uuid.New(), Role: models.RoleNGOMember},
	}
	r := newRouter(res, func(c *gin.Context) { c.Next() })

	w := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "auth-token", Value: "cookie-token"}) })
	assert.Equal(t, "police", w.Body.String())

	w = do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer header-token") })
	assert.Equal(t, "ngo_member", w.Body.String())

	w = do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer unknown") })
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	res := staticResolver{
		"admin":  {UserID: uuid.New(), Role: models.RoleAdmin},
		"public": {UserID: uuid.New(), Role: models.RolePublic},
	}
	r := newRouter(res, RequireRole(models.RoleAdmin))

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)

	w := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "auth-token", Value: "public"}) })
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "auth-token", Value: "admin"}) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", w.Body.String())
}

func TestRequireAuthAnyRole(t *testing.T) {
	res := staticResolver{"public": {UserID: uuid.New(), Role: models.RolePublic}}
	r := newRouter(res, RequireAuth())

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	w := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "auth-token", Value: "public"}) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000, http://app.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSWildcardIsNotCredentialed(t *testing.T) {
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestOriginsAllows(t *testing.T) {
	listed := ParseOrigins(" https://findthem.org ,http://localhost:3000")
	assert.False(t, listed.Any())
	assert.True(t, listed.Allows("https://findthem.org"))
	assert.True(t, listed.Allows(""))
	assert.False(t, listed.Allows("https://evil.example"))

	assert.True(t, ParseOrigins("").Allows("https://evil.example"))
	assert.True(t, ParseOrigins("*").Any())
}
