package photomatch

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/cases"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/response"
)

const multipartOverhead = 1 << 20

// Handler handles photo-match HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a photo-match handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Result is the photo-match response body.
type Result struct {
	Matches []models.Match `json:"matches"`
	Total   int            `json:"total"`
}

// Match handles POST /photo-match with a multipart "photo" field.
func (h *Handler) Match(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.svc.MaxBytes()+multipartOverhead)
	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperr.Validation("photo", "upload too large"))
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

	matches, err := h.svc.Match(c.Request.Context(), cases.PhotoUpload{
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, Result{Matches: matches, Total: len(matches)})
}
