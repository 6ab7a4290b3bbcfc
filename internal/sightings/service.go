package sightings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/utils"
)

// Store is the sighting persistence used by the service.
type Store interface {
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.Sighting, error)
	Create(ctx context.Context, s *models.Sighting) (uuid.UUID, error)
	GetWithOwner(ctx context.Context, id uuid.UUID) (*models.Sighting, uuid.UUID, error)
	Review(ctx context.Context, id uuid.UUID, status models.SightingStatus, reviewer uuid.UUID) (*models.Sighting, error)
}

// AlertPublisher notifies an organization of a new sighting on one of its cases.
type AlertPublisher interface {
	PublishSighting(ctx context.Context, orgID uuid.UUID, s *models.Sighting) error
}

// CreateInput is the sighting creation boundary. ConfidenceLevel accepts a number or a numeric string.
type CreateInput struct {
	CaseID           string          `json:"case_id"`
	ReporterName     string          `json:"reporter_name"`
	ReporterEmail    string          `json:"reporter_email"`
	ReporterPhone    string          `json:"reporter_phone"`
	SightingLocation string          `json:"sighting_location"`
	SightingDate     string          `json:"sighting_date"`
	SightingTime     string          `json:"sighting_time"`
	Description      string          `json:"description"`
	ConfidenceLevel  json.RawMessage `json:"confidence_level"`
}

// Service implements the public sighting channel and its review.
type Service struct {
	store  Store
	alerts AlertPublisher
	logger *zap.Logger
}

// NewService creates a sighting service. alerts may be nil.
func NewService(store Store, alerts AlertPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, alerts: alerts, logger: logger}
}

// ListSightingsByCase returns a case's sightings, newest first. Storage failures yield an empty list.
func (s *Service) ListSightingsByCase(ctx context.Context, caseID uuid.UUID) []*models.Sighting {
	list, err := s.store.ListByCase(ctx, caseID)
	if err != nil {
		s.logger.Warn("list sightings failed", zap.Error(err), zap.String("case_id", caseID.String()))
		return []*models.Sighting{}
	}
	if list == nil {
		return []*models.Sighting{}
	}
	return list
}

// CreateSighting validates and records a public sighting report. No principal is required.
func (s *Service) CreateSighting(ctx context.Context, in CreateInput) (*models.Sighting, error) {
	sighting, err := buildSighting(in)
	if err != nil {
		return nil, err
	}
	orgID, err := s.store.Create(ctx, sighting)
	if errors.Is(err, ErrCaseNotFound) {
		return nil, apperr.Validation("case_id", "no such case")
	}
	if err != nil {
		s.logger.Error("create sighting failed", zap.Error(err), zap.String("case_id", sighting.CaseID.String()))
		return nil, apperr.Storage("create sighting", err)
	}
	s.logger.Info("sighting recorded", zap.String("sighting_id", sighting.ID.String()), zap.String("case_id", sighting.CaseID.String()))

	if s.alerts != nil {
		if err := s.alerts.PublishSighting(ctx, orgID, sighting); err != nil {
			s.logger.Warn("publish sighting alert failed", zap.Error(err), zap.String("sighting_id", sighting.ID.String()))
		}
	}
	return sighting, nil
}

func buildSighting(in CreateInput) (*models.Sighting, error) {
	required := []struct{ field, value string }{
		{"case_id", in.CaseID},
		{"reporter_name", in.ReporterName},
		{"reporter_email", in.ReporterEmail},
		{"reporter_phone", in.ReporterPhone},
		{"sighting_location", in.SightingLocation},
		{"sighting_date", in.SightingDate},
		{"description", in.Description},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, apperr.MissingField(r.field)
		}
	}
	caseID, err := uuid.Parse(strings.TrimSpace(in.CaseID))
	if err != nil {
		return nil, apperr.Validation("case_id", "must be a case id")
	}
	date, ok := utils.ParseDate(in.SightingDate)
	if !ok {
		return nil, apperr.Validation("sighting_date", "must be a date (YYYY-MM-DD)")
	}
	confidence, err := ParseConfidence(in.ConfidenceLevel)
	if err != nil {
		return nil, err
	}
	return &models.Sighting{
		CaseID:           caseID,
		ReporterName:     strings.TrimSpace(in.ReporterName),
		ReporterEmail:    strings.TrimSpace(in.ReporterEmail),
		ReporterPhone:    strings.TrimSpace(in.ReporterPhone),
		SightingLocation: strings.TrimSpace(in.SightingLocation),
		SightingDate:     date,
		SightingTime:     strings.TrimSpace(in.SightingTime),
		Description:      strings.TrimSpace(in.Description),
		PhotoURLs:        []string{},
		ConfidenceLevel:  confidence,
		Status:           models.SightingPending,
	}, nil
}

// ParseConfidence reads an optional self-reported confidence. Values outside [1,5] are rejected, never clamped.
func ParseConfidence(raw json.RawMessage) (*int, error) {
	v, ok := utils.ParseOptionalInt(raw)
	if !ok {
		return nil, apperr.Validation("confidence_level", "must be an integer")
	}
	if v != nil && (*v < models.MinConfidence || *v > models.MaxConfidence) {
		return nil, apperr.Validation("confidence_level",
			fmt.Sprintf("must be between %d and %d", models.MinConfidence, models.MaxConfidence))
	}
	return v, nil
}

// Review records an authority's verdict on a pending sighting of one of its organization's cases.
func (s *Service) Review(ctx context.Context, p *models.Principal, rawID, status string) (*models.Sighting, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	if !p.HasRole(models.CaseManagerRoles...) {
		return nil, apperr.Unauthorized("")
	}
	next := models.SightingStatus(status)
	if next != models.SightingVerified && next != models.SightingFalsePositive {
		return nil, apperr.Validation("status", "must be verified or false_positive")
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, apperr.NotFound("sighting")
	}
	current, orgID, err := s.store.GetWithOwner(ctx, id)
	if errors.Is(err, ErrSightingNotFound) {
		return nil, apperr.NotFound("sighting")
	}
	if err != nil {
		return nil, apperr.Storage("get sighting", err)
	}
	if !p.CanManage(orgID) {
		return nil, apperr.Unauthorized("sighting belongs to another organization's case")
	}
	if current.Status != models.SightingPending {
		return nil, apperr.Validation("status", "sighting has already been reviewed")
	}
	reviewed, err := s.store.Review(ctx, id, next, p.UserID)
	if errors.Is(err, ErrNotPending) {
		return nil, apperr.Validation("status", "sighting has already been reviewed")
	}
	if err != nil {
		s.logger.Error("review sighting failed", zap.Error(err), zap.String("sighting_id", id.String()))
		return nil, apperr.Storage("review sighting", err)
	}
	s.logger.Info("sighting reviewed", zap.String("sighting_id", id.String()), zap.String("status", status),
		zap.String("reviewer_id", p.UserID.String()))
	return reviewed, nil
}
