package sightings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

// Handler handles sighting HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a sightings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /sightings. Anyone may report a sighting.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	s, err := h.svc.CreateSighting(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, s)
}

// ListByCase handles GET /cases/:id/sightings.
func (h *Handler) ListByCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.NotFound("case"))
		return
	}
	response.OK(c, models.PublicSightings(h.svc.ListSightingsByCase(c.Request.Context(), id)))
}

// ReviewRequest is the body for PATCH /sightings/:id/review.
type ReviewRequest struct {
	Status string `json:"status"`
}

// Review handles PATCH /sightings/:id/review.
func (h *Handler) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	s, err := h.svc.Review(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}
