package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/queue"
	"github.com/findthem/backend/pkg/storage"
	"github.com/findthem/backend/pkg/utils"
)

const caseNumberAttempts = 3

// Store is the case persistence used by the service.
type Store interface {
	List(ctx context.Context, f models.CaseFilter) ([]*models.Case, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	Create(ctx context.Context, c *models.Case) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.CaseStatus) (*models.Case, error)
	AppendPhoto(ctx context.Context, id uuid.UUID, photoURL string) (*models.Case, error)
	Stats(ctx context.Context, orgID uuid.UUID) (*models.CaseStats, error)
}

// PhotoStore persists uploaded case photos.
type PhotoStore interface {
	UploadPhoto(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// EmbeddingQueue schedules feature extraction for a stored photo.
type EmbeddingQueue interface {
	EnqueuePhotoEmbedding(ctx context.Context, payload queue.PhotoEmbeddingPayload) error
}

// SightingFeed lists the latest sightings reported against an organization's cases.
type SightingFeed interface {
	ListRecentByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Sighting, error)
}

// CreateInput is the case creation boundary. Age accepts a number or a numeric string.
type CreateInput struct {
	ChildName        string            `json:"child_name"`
	Age              json.RawMessage   `json:"age"`
	Gender           string            `json:"gender"`
	Description      string            `json:"description"`
	LastSeenLocation string            `json:"last_seen_location"`
	LastSeenDate     string            `json:"last_seen_date"`
	Priority         string            `json:"priority"`
	AdditionalInfo   map[string]string `json:"additional_info"`
}

// Dashboard is an organization's overview.
type Dashboard struct {
	Stats           models.CaseStats   `json:"stats"`
	RecentCases     []*models.Case     `json:"recent_cases"`
	RecentSightings []*models.Sighting `json:"recent_sightings"`
}

// Service implements case operations on top of a Store.
type Service struct {
	store     Store
	photos    PhotoStore
	embedding EmbeddingQueue
	sightings SightingFeed
	now       func() time.Time
	logger    *zap.Logger

	// lastNumber is the unix millisecond of the last case number issued by this service.
	lastNumber atomic.Int64
}

// Option configures optional collaborators of the service.
type Option func(*Service)

// WithPhotoStore enables photo uploads.
func WithPhotoStore(p PhotoStore) Option { return func(s *Service) { s.photos = p } }

// WithEmbeddingQueue schedules embeddings for uploaded photos.
func WithEmbeddingQueue(q EmbeddingQueue) Option { return func(s *Service) { s.embedding = q } }

// WithSightingFeed adds recent sightings to the dashboard.
func WithSightingFeed(f SightingFeed) Option { return func(s *Service) { s.sightings = f } }

// NewService creates a case service.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListCases returns matching cases, newest first. Storage failures yield an empty list.
func (s *Service) ListCases(ctx context.Context, f models.CaseFilter) []*models.Case {
	list, err := s.store.List(ctx, f)
	if err != nil {
		s.logger.Warn("list cases failed", zap.Error(err))
		return []*models.Case{}
	}
	if list == nil {
		return []*models.Case{}
	}
	return list
}

// GetCase returns one case. Missing, malformed and unreadable ids all yield NotFound.
func (s *Service) GetCase(ctx context.Context, rawID string) (*models.Case, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, apperr.NotFound("case")
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrCaseNotFound) {
			s.logger.Warn("get case failed", zap.Error(err), zap.String("case_id", id.String()))
		}
		return nil, apperr.NotFound("case")
	}
	return c, nil
}

// CreateCase validates input and stores a new active case owned by the principal's organization.
func (s *Service) CreateCase(ctx context.Context, p *models.Principal, in CreateInput) (*models.Case, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	if !p.HasRole(models.CaseManagerRoles...) {
		return nil, apperr.Unauthorized("")
	}
	c, err := buildCase(p, in)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < caseNumberAttempts; attempt++ {
		c.CaseNumber = CaseNumber(c.OrganizationID, s.nextNumberTime())
		err = s.store.Create(ctx, c)
		if !errors.Is(err, ErrDuplicateCaseNumber) {
			break
		}
	}
	if err != nil {
		s.logger.Error("create case failed", zap.Error(err),
			zap.String("organization_id", c.OrganizationID.String()),
			zap.String("created_by", c.CreatedBy.String()))
		return nil, apperr.Storage("create case", err)
	}
	s.logger.Info("case created", zap.String("case_id", c.ID.String()), zap.String("case_number", c.CaseNumber))
	return c, nil
}

// nextNumberTime returns the current time, moved past the last issued case number so
// numbers from one service never repeat even when the clock stands still.
func (s *Service) nextNumberTime() time.Time {
	for {
		last := s.lastNumber.Load()
		ms := s.now().UnixMilli()
		if ms <= last {
			ms = last + 1
		}
		if s.lastNumber.CompareAndSwap(last, ms) {
			return time.UnixMilli(ms)
		}
	}
}

// CaseNumber derives the shareable case reference from the owning organization and creation time.
func CaseNumber(orgID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s-%d", orgID, at.UnixMilli())
}

func buildCase(p *models.Principal, in CreateInput) (*models.Case, error) {
	required := []struct{ field, value string }{
		{"child_name", in.ChildName},
		{"description", in.Description},
		{"last_seen_location", in.LastSeenLocation},
		{"last_seen_date", in.LastSeenDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, apperr.MissingField(r.field)
		}
	}
	if p.OrganizationID == nil || *p.OrganizationID == uuid.Nil {
		return nil, apperr.MissingField("organization_id")
	}
	if p.UserID == uuid.Nil {
		return nil, apperr.MissingField("created_by")
	}

	lastSeen, ok := utils.ParseDate(in.LastSeenDate)
	if !ok {
		return nil, apperr.Validation("last_seen_date", "must be a date (YYYY-MM-DD)")
	}
	age, ok := utils.ParseOptionalInt(in.Age)
	if !ok || (age != nil && *age < 0) {
		return nil, apperr.Validation("age", "must be a non-negative integer")
	}
	gender := models.Gender(strings.ToLower(strings.TrimSpace(in.Gender)))
	if gender != "" && !gender.Valid() {
		return nil, apperr.Validation("gender", "must be one of male, female, other")
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		priority = models.Priority(in.Priority)
		if !priority.Valid() {
			return nil, apperr.Validation("priority", "must be one of low, medium, high, urgent")
		}
	}
	info := in.AdditionalInfo
	if info == nil {
		info = map[string]string{}
	}

	return &models.Case{
		ChildName:        strings.TrimSpace(in.ChildName),
		Age:              age,
		Gender:           gender,
		Description:      strings.TrimSpace(in.Description),
		LastSeenLocation: strings.TrimSpace(in.LastSeenLocation),
		LastSeenDate:     lastSeen,
		Status:           models.CaseActive,
		Priority:         priority,
		OrganizationID:   *p.OrganizationID,
		CreatedBy:        p.UserID,
		PhotoURLs:        []string{},
		AdditionalInfo:   info,
	}, nil
}

// loadManaged fetches a case the principal may modify.
func (s *Service) loadManaged(ctx context.Context, p *models.Principal, rawID string) (*models.Case, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	if !p.HasRole(models.CaseManagerRoles...) {
		return nil, apperr.Unauthorized("")
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, apperr.NotFound("case")
	}
	c, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrCaseNotFound) {
		return nil, apperr.NotFound("case")
	}
	if err != nil {
		return nil, apperr.Storage("get case", err)
	}
	if !p.CanManage(c.OrganizationID) {
		return nil, apperr.Unauthorized("case belongs to another organization")
	}
	return c, nil
}

// UpdateStatus closes out an active case as found or closed.
func (s *Service) UpdateStatus(ctx context.Context, p *models.Principal, rawID, status string) (*models.Case, error) {
	next := models.CaseStatus(status)
	if next != models.CaseFound && next != models.CaseClosed {
		return nil, apperr.Validation("status", "must be found or closed")
	}
	c, err := s.loadManaged(ctx, p, rawID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CaseActive {
		return nil, apperr.Validation("status", "only active cases can change status")
	}
	updated, err := s.store.UpdateStatus(ctx, c.ID, next)
	if errors.Is(err, ErrCaseNotFound) {
		return nil, apperr.Validation("status", "only active cases can change status")
	}
	if err != nil {
		s.logger.Error("update case status failed", zap.Error(err), zap.String("case_id", c.ID.String()))
		return nil, apperr.Storage("update case status", err)
	}
	s.logger.Info("case status changed", zap.String("case_id", c.ID.String()), zap.String("status", status))
	return updated, nil
}

// PhotoUpload is one uploaded image.
type PhotoUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// AddPhoto stores an image for a case, appends it to the case and schedules its embedding.
func (s *Service) AddPhoto(ctx context.Context, p *models.Principal, rawID string, up PhotoUpload) (*models.Case, error) {
	if up.Body == nil || up.Size == 0 {
		return nil, apperr.MissingField("photo")
	}
	if !storage.IsAllowedPhotoType(up.ContentType) {
		return nil, apperr.Validation("photo", "must be a JPEG, PNG, GIF or WebP image")
	}
	if up.Size > storage.MaxPhotoSize {
		return nil, apperr.Validation("photo", "must be at most 10MB")
	}
	if s.photos == nil {
		return nil, apperr.Storage("upload photo", errors.New("photo storage is not configured"))
	}
	c, err := s.loadManaged(ctx, p, rawID)
	if err != nil {
		return nil, err
	}

	key := storage.CasePhotoKey(c.ID.String(), uuid.NewString(), up.ContentType)
	url, err := s.photos.UploadPhoto(ctx, key, up.ContentType, up.Body, up.Size)
	if err != nil {
		s.logger.Error("upload case photo failed", zap.Error(err), zap.String("case_id", c.ID.String()))
		return nil, apperr.Storage("upload photo", err)
	}
	updated, err := s.store.AppendPhoto(ctx, c.ID, url)
	if err != nil {
		s.logger.Error("append case photo failed", zap.Error(err), zap.String("case_id", c.ID.String()))
		return nil, apperr.Storage("append photo", err)
	}
	if s.embedding != nil {
		if err := s.embedding.EnqueuePhotoEmbedding(ctx, queue.PhotoEmbeddingPayload{CaseID: c.ID, PhotoURL: url}); err != nil {
			s.logger.Warn("enqueue photo embedding failed", zap.Error(err), zap.String("case_id", c.ID.String()))
		}
	}
	return updated, nil
}

const (
	dashboardRecentCases     = 5
	dashboardRecentSightings = 5
)

// Dashboard summarizes the principal's organization. Storage failures degrade to zero counts and empty lists.
func (s *Service) Dashboard(ctx context.Context, p *models.Principal) (*Dashboard, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	if p.OrganizationID == nil {
		return nil, apperr.Validation("organization_id", "principal has no organization")
	}
	orgID := *p.OrganizationID
	d := &Dashboard{RecentSightings: []*models.Sighting{}}

	if stats, err := s.store.Stats(ctx, orgID); err != nil {
		s.logger.Warn("case stats failed", zap.Error(err), zap.String("organization_id", orgID.String()))
	} else {
		d.Stats = *stats
	}
	d.RecentCases = s.ListCases(ctx, models.CaseFilter{OrganizationID: &orgID, Limit: dashboardRecentCases})
	if s.sightings != nil {
		recent, err := s.sightings.ListRecentByOrganization(ctx, orgID, dashboardRecentSightings)
		if err != nil {
			s.logger.Warn("recent sightings failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		} else if recent != nil {
			d.RecentSightings = recent
		}
	}
	return d, nil
}
