package organizations

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

// Store is the organization persistence used by the handler.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ListVerified(ctx context.Context) ([]*models.Organization, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListVerified handles GET /organizations. Listing degrades to empty on storage failure.
func (h *Handler) ListVerified(c *gin.Context) {
	list, err := h.repo.ListVerified(c.Request.Context())
	if err != nil {
		h.logger.Warn("list organizations failed", zap.Error(err))
		list = nil
	}
	if list == nil {
		list = []*models.Organization{}
	}
	response.OK(c, list)
}

// GetByID handles GET /organizations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.NotFound("organization"))
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Warn("get organization failed", zap.Error(err), zap.String("organization_id", id.String()))
		}
		response.Error(c, apperr.NotFound("organization"))
		return
	}
	response.OK(c, org)
}

// VerificationRequest is the body for PATCH /organizations/:id/verification.
type VerificationRequest struct {
	Status string `json:"status"`
}

// UpdateVerification handles PATCH /organizations/:id/verification (admin only).
func (h *Handler) UpdateVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.NotFound("organization"))
		return
	}
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	status := models.VerificationStatus(req.Status)
	if status != models.VerificationVerified && status != models.VerificationRejected {
		response.Error(c, apperr.Validation("status", "must be verified or rejected"))
		return
	}
	org, err := h.repo.UpdateVerification(c.Request.Context(), id, status)
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, apperr.NotFound("organization"))
		return
	case errors.Is(err, ErrNotPending):
		response.Error(c, apperr.Validation("status", "organization has already been reviewed"))
		return
	case err != nil:
		h.logger.Error("update verification failed", zap.Error(err), zap.String("organization_id", id.String()))
		response.Error(c, apperr.Storage("update verification", err))
		return
	}
	h.logger.Info("organization reviewed",
		zap.String("organization_id", id.String()),
		zap.String("status", string(status)),
		zap.String("reviewer_id", middleware.PrincipalFrom(c).UserID.String()),
	)
	response.OK(c, org)
}

// ListMembers handles GET /organizations/:id/members for managers of that organization.
func (h *Handler) ListMembers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.NotFound("organization"))
		return
	}
	p := middleware.PrincipalFrom(c)
	if p == nil {
		response.Error(c, apperr.Unauthenticated())
		return
	}
	if !p.CanManage(id) {
		response.Error(c, apperr.Unauthorized("not a member of this organization"))
		return
	}
	list, err := h.repo.ListMembers(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("list members failed", zap.Error(err), zap.String("organization_id", id.String()))
		list = nil
	}
	if list == nil {
		list = []Member{}
	}
	response.OK(c, list)
}
