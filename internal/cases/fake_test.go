package cases

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/queue"
)

type memStore struct {
	mu        sync.Mutex
	cases     []*models.Case
	failRead  error
	failWrite error
	taken     map[string]bool
	creates   int
	reads     int
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{taken: map[string]bool{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memStore) List(_ context.Context, f models.CaseFilter) ([]*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failRead != nil {
		return nil, m.failRead
	}
	var out []*models.Case
	for _, c := range m.cases {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.OrganizationID != nil && c.OrganizationID != *f.OrganizationID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failRead != nil {
		return nil, m.failRead
	}
	for _, c := range m.cases {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCaseNotFound
}

func (m *memStore) Create(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failWrite != nil {
		return m.failWrite
	}
	if m.taken[c.CaseNumber] {
		return ErrDuplicateCaseNumber
	}
	m.taken[c.CaseNumber] = true
	m.clock = m.clock.Add(time.Second)
	c.ID, c.CreatedAt, c.UpdatedAt = uuid.New(), m.clock, m.clock
	cp := *c
	m.cases = append(m.cases, &cp)
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.CaseStatus) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, m.failWrite
	}
	for _, c := range m.cases {
		if c.ID == id && c.Status == models.CaseActive {
			c.Status = status
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCaseNotFound
}

func (m *memStore) AppendPhoto(_ context.Context, id uuid.UUID, url string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, m.failWrite
	}
	for _, c := range m.cases {
		if c.ID == id {
			c.PhotoURLs = append(c.PhotoURLs, url)
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCaseNotFound
}

func (m *memStore) Stats(_ context.Context, orgID uuid.UUID) (*models.CaseStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	var s models.CaseStats
	for _, c := range m.cases {
		if c.OrganizationID != orgID {
			continue
		}
		s.Total++
		switch c.Status {
		case models.CaseActive:
			s.Active++
		case models.CaseFound:
			s.Found++
		case models.CaseClosed:
			s.Closed++
		}
		if c.Priority == models.PriorityUrgent {
			s.Urgent++
		}
	}
	return &s, nil
}

type memPhotos struct {
	keys []string
	err  error
}

func (p *memPhotos) UploadPhoto(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	p.keys = append(p.keys, key)
	return "https://photos.s3.test.amazonaws.com/" + key, nil
}

type memQueue struct {
	jobs []queue.PhotoEmbeddingPayload
}

func (q *memQueue) EnqueuePhotoEmbedding(_ context.Context, p queue.PhotoEmbeddingPayload) error {
	q.jobs = append(q.jobs, p)
	return nil
}

type memFeed struct {
	sightings []*models.Sighting
}

func (f *memFeed) ListRecentByOrganization(context.Context, uuid.UUID, int) ([]*models.Sighting, error) {
	return f.sightings, nil
}

func (f *memFeed) ListSightingsByCase(_ context.Context, caseID uuid.UUID) []*models.Sighting {
	var out []*models.Sighting
	for _, s := range f.sightings {
		if s.CaseID == caseID {
			out = append(out, s)
		}
	}
	return out
}

func orgPrincipal(role models.Role) *models.Principal {
	org := uuid.New()
	return &models.Principal{UserID: uuid.New(), Role: role, OrganizationID: &org}
}

func janeDoe() CreateInput {
	return CreateInput{
		ChildName:        "Jane Doe",
		Description:      "Wearing a red coat",
		LastSeenLocation: "Park Ave",
		LastSeenDate:     "2024-01-01",
	}
}
