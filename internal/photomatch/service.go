package photomatch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/cases"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/storage"
)

// Service validates query uploads and runs the configured matcher.
type Service struct {
	matcher  Matcher
	maxBytes int64
	logger   *zap.Logger
}

// NewService creates a photo-match service. maxBytes <= 0 uses the photo upload limit.
func NewService(matcher Matcher, maxBytes int64, logger *zap.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = storage.MaxPhotoSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{matcher: matcher, maxBytes: maxBytes, logger: logger}
}

// MaxBytes returns the largest accepted query image.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Match ranks active cases by similarity to the uploaded image. Input is validated
// before any case is read; lookup failures return no partial results.
func (s *Service) Match(ctx context.Context, up cases.PhotoUpload) ([]models.Match, error) {
	if up.Body == nil || up.Size == 0 {
		return nil, apperr.MissingField("photo")
	}
	if !isImage(up.ContentType) {
		return nil, apperr.Validation("photo", "must be an image")
	}
	tooLarge := apperr.Validation("photo", fmt.Sprintf("must be at most %dMB", s.maxBytes>>20))
	if up.Size > s.maxBytes {
		return nil, tooLarge
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperr.Validation("photo", "unreadable upload")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, tooLarge
	}

	matches, err := s.matcher.Match(ctx, data, up.ContentType)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return nil, err
		}
		s.logger.Error("photo match failed", zap.Error(err))
		return nil, apperr.Storage("photo match", err)
	}
	if matches == nil {
		matches = []models.Match{}
	}
	s.logger.Info("photo match", zap.Int("matches", len(matches)))
	return matches, nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
