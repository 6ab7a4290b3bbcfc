// Package server assembles the HTTP routes of the case reporting API.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/auth"
	"github.com/findthem/backend/internal/cases"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/internal/organizations"
	"github.com/findthem/backend/internal/photomatch"
	"github.com/findthem/backend/internal/sightings"
	"github.com/findthem/backend/pkg/response"
)

// Handlers are the feature handlers mounted by NewRouter. Alerts may be nil.
type Handlers struct {
	Auth          *auth.Handler
	Organizations *organizations.Handler
	Cases         *cases.Handler
	Sightings     *sightings.Handler
	PhotoMatch    *photomatch.Handler
	Alerts        gin.HandlerFunc
}

// Options configure the router's middleware chain.
type Options struct {
	CORSAllowedOrigins string
	CookieName         string
	Resolver           middleware.PrincipalResolver
	Logger             *zap.Logger
}

// NewRouter builds the gin engine with session resolution and role guards.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(opts.CORSAllowedOrigins))
	router.Use(middleware.Session(opts.Resolver, opts.CookieName))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	managers := middleware.RequireRole(models.CaseManagerRoles...)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/me", h.Auth.Me)
	}

	// Public browsing and reporting
	router.GET("/organizations", h.Organizations.ListVerified)
	router.GET("/organizations/:id", h.Organizations.GetByID)
	router.GET("/cases", h.Cases.List)
	router.GET("/cases/:id", h.Cases.GetByID)
	router.GET("/cases/:id/sightings", h.Sightings.ListByCase)
	router.POST("/sightings", h.Sightings.Create)
	router.POST("/photo-match", h.PhotoMatch.Match)

	// Organization staff
	api := router.Group("", middleware.RequireAuth())
	{
		api.GET("/organizations/:id/members", h.Organizations.ListMembers)
		api.PATCH("/organizations/:id/verification", middleware.RequireRole(models.RoleAdmin), h.Organizations.UpdateVerification)

		api.POST("/cases", managers, h.Cases.Create)
		api.PATCH("/cases/:id/status", managers, h.Cases.UpdateStatus)
		api.POST("/cases/:id/photos", managers, h.Cases.UploadPhoto)
		api.GET("/dashboard", managers, h.Cases.Dashboard)

		api.PATCH("/sightings/:id/review", managers, h.Sightings.Review)

		if h.Alerts != nil {
			api.GET("/ws/alerts", h.Alerts)
		}
	}
	return router
}
