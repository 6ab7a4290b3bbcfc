package cases

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
	"github.com/findthem/backend/pkg/storage"
)

// SightingLister returns the sightings of a case for the detail view.
type SightingLister interface {
	ListSightingsByCase(ctx context.Context, caseID uuid.UUID) []*models.Sighting
}

// Detail is a case with its sightings.
type Detail struct {
	*models.Case
	Sightings []models.PublicSighting `json:"sightings"`
}

// Handler handles case HTTP endpoints.
type Handler struct {
	svc       *Service
	sightings SightingLister
	logger    *zap.Logger
}

// NewHandler creates a cases handler. sightings may be nil.
func NewHandler(svc *Service, sightings SightingLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, sightings: sightings, logger: logger}
}

// List handles GET /cases?status=&organization_id=&limit=.
func (h *Handler) List(c *gin.Context) {
	var f models.CaseFilter
	if v := c.Query("status"); v != "" {
		st := models.CaseStatus(v)
		if !st.Valid() {
			response.Error(c, apperr.Validation("status", "must be one of active, found, closed"))
			return
		}
		f.Status = &st
	}
	if v := c.Query("organization_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, apperr.Validation("organization_id", "must be a UUID"))
			return
		}
		f.OrganizationID = &id
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.Error(c, apperr.Validation("limit", "must be a positive integer"))
			return
		}
		f.Limit = n
	}
	response.OK(c, h.svc.ListCases(c.Request.Context(), f))
}

// GetByID handles GET /cases/:id.
func (h *Handler) GetByID(c *gin.Context) {
	cs, err := h.svc.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	d := Detail{Case: cs, Sightings: []models.PublicSighting{}}
	if h.sightings != nil {
		if list := h.sightings.ListSightingsByCase(c.Request.Context(), cs.ID); list != nil {
			d.Sightings = models.PublicSightings(list)
		}
	}
	response.OK(c, d)
}

// Create handles POST /cases.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	cs, err := h.svc.CreateCase(c.Request.Context(), middleware.PrincipalFrom(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cs)
}

// StatusRequest is the body for PATCH /cases/:id/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /cases/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	cs, err := h.svc.UpdateStatus(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cs)
}

// multipartOverhead is allowed on top of the photo limit for form boundaries and headers.
const multipartOverhead = 1 << 20

// UploadPhoto handles POST /cases/:id/photos (multipart form field "photo").
func (h *Handler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxPhotoSize+multipartOverhead)
	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperr.Validation("photo", "must be at most 10MB"))
			return
		}
		response.Error(c, apperr.MissingField("photo"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, apperr.Validation("photo", "unreadable upload"))
		return
	}
	defer f.Close()

	cs, err := h.svc.AddPhoto(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), PhotoUpload{
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cs)
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}
