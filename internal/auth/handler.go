package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

// CookieOptions controls the session cookie set on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned on login; the token is also set as the session cookie.
type SessionResponse struct {
	Token string            `json:"token"`
	User  *models.Principal `json:"user"`
}

// RegisterResponse is returned on registration.
type RegisterResponse struct {
	Organization *models.Organization `json:"organization"`
	User         *models.User         `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	cookie CookieOptions
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, cookie CookieOptions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cookie.Name == "" {
		cookie.Name = "auth-token"
	}
	return &Handler{svc: svc, cookie: cookie, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	org, user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("organization registered",
		zap.String("organization_id", org.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("org_type", string(org.Type)),
	)
	response.Created(c, RegisterResponse{Organization: org, User: user})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	token, principal, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, token, int(h.svc.jwt.TTL().Seconds()))
	c.JSON(http.StatusOK, response.Body{Success: true, Data: SessionResponse{Token: token, User: principal}})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	response.OK(c, gin.H{"logged_out": true})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		response.Error(c, apperr.Unauthenticated())
		return
	}
	response.OK(c, p)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
