package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/findthem/backend/internal/auth"
	"github.com/findthem/backend/internal/cases"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/internal/organizations"
	"github.com/findthem/backend/internal/sightings"
)

// world is an in-memory backing store shared by the per-package fakes.
type world struct {
	mu        sync.Mutex
	clock     time.Time
	orgs      map[uuid.UUID]*models.Organization
	users     map[string]*models.User
	cases     []*models.Case
	sightings []*models.Sighting
}

func newWorld() *world {
	return &world{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		orgs:  map[uuid.UUID]*models.Organization{},
		users: map[string]*models.User{},
	}
}

func (w *world) tick() time.Time {
	w.clock = w.clock.Add(time.Second)
	return w.clock
}

func (w *world) findCase(id uuid.UUID) *models.Case {
	for _, c := range w.cases {
		if c.ID == id {
			return c
		}
	}
	return nil
}

type userStore struct{ *world }

func (s userStore) Register(_ context.Context, org *models.Organization, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return auth.ErrDuplicateEmail
	}
	now := s.tick()
	org.ID, org.CreatedAt, org.UpdatedAt = uuid.New(), now, now
	user.ID, user.CreatedAt, user.UpdatedAt = uuid.New(), now, now
	user.OrganizationID = &org.ID
	o, u := *org, *user
	s.orgs[org.ID] = &o
	s.users[user.Email] = &u
	return nil
}

func (s userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s userStore) GetPrincipal(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID != id {
			continue
		}
		p := &models.Principal{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
			OrganizationID: u.OrganizationID, IsVerified: u.IsVerified}
		if u.OrganizationID != nil {
			if o, ok := s.orgs[*u.OrganizationID]; ok {
				p.OrganizationName = o.Name
			}
		}
		return p, nil
	}
	return nil, auth.ErrUserNotFound
}

type orgStore struct{ *world }

func (s orgStore) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, organizations.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s orgStore) ListVerified(context.Context) ([]*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Organization
	for _, o := range s.orgs {
		if o.VerificationStatus == models.VerificationVerified {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s orgStore) UpdateVerification(_ context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, organizations.ErrNotFound
	}
	if o.VerificationStatus != models.VerificationPending {
		return nil, organizations.ErrNotPending
	}
	o.VerificationStatus = status
	cp := *o
	return &cp, nil
}

func (s orgStore) ListMembers(_ context.Context, orgID uuid.UUID) ([]organizations.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []organizations.Member
	for _, u := range s.users {
		if u.OrganizationID != nil && *u.OrganizationID == orgID {
			out = append(out, organizations.Member{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
				IsVerified: u.IsVerified, AddedAt: u.CreatedAt})
		}
	}
	return out, nil
}

type caseStore struct{ *world }

func (s caseStore) List(_ context.Context, f models.CaseFilter) ([]*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Case
	for i := len(s.cases) - 1; i >= 0; i-- {
		c := s.cases[i]
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.OrganizationID != nil && c.OrganizationID != *f.OrganizationID {
			continue
		}
		cp := *c
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s caseStore) ListActiveByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Case
	for _, id := range ids {
		if c := s.findCase(id); c != nil && c.Status == models.CaseActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s caseStore) GetByID(_ context.Context, id uuid.UUID) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findCase(id)
	if c == nil {
		return nil, cases.ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (s caseStore) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cases {
		if existing.CaseNumber == c.CaseNumber {
			return cases.ErrDuplicateCaseNumber
		}
	}
	now := s.tick()
	c.ID, c.CreatedAt, c.UpdatedAt = uuid.New(), now, now
	cp := *c
	s.cases = append(s.cases, &cp)
	return nil
}

func (s caseStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.CaseStatus) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findCase(id)
	if c == nil || c.Status != models.CaseActive {
		return nil, cases.ErrCaseNotFound
	}
	c.Status = status
	cp := *c
	return &cp, nil
}

func (s caseStore) AppendPhoto(_ context.Context, id uuid.UUID, photoURL string) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findCase(id)
	if c == nil {
		return nil, cases.ErrCaseNotFound
	}
	c.PhotoURLs = append(c.PhotoURLs, photoURL)
	cp := *c
	return &cp, nil
}

func (s caseStore) Stats(_ context.Context, orgID uuid.UUID) (*models.CaseStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.CaseStats
	for _, c := range s.cases {
		if c.OrganizationID != orgID {
			continue
		}
		st.Total++
		switch c.Status {
		case models.CaseActive:
			st.Active++
		case models.CaseFound:
			st.Found++
		case models.CaseClosed:
			st.Closed++
		}
		if c.Priority == models.PriorityUrgent {
			st.Urgent++
		}
	}
	return &st, nil
}

type sightingStore struct{ *world }

func (s sightingStore) ListByCase(_ context.Context, caseID uuid.UUID) ([]*models.Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Sighting
	for i := len(s.sightings) - 1; i >= 0; i-- {
		if s.sightings[i].CaseID == caseID {
			cp := *s.sightings[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s sightingStore) ListRecentByOrganization(_ context.Context, orgID uuid.UUID, limit int) ([]*models.Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Sighting
	for i := len(s.sightings) - 1; i >= 0 && len(out) < limit; i-- {
		sg := s.sightings[i]
		if c := s.findCase(sg.CaseID); c != nil && c.OrganizationID == orgID {
			cp := *sg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s sightingStore) Create(_ context.Context, sg *models.Sighting) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findCase(sg.CaseID)
	if c == nil {
		return uuid.Nil, sightings.ErrCaseNotFound
	}
	now := s.tick()
	sg.ID, sg.CreatedAt, sg.UpdatedAt = uuid.New(), now, now
	cp := *sg
	s.sightings = append(s.sightings, &cp)
	return c.OrganizationID, nil
}

func (s sightingStore) GetWithOwner(_ context.Context, id uuid.UUID) (*models.Sighting, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.sightings {
		if sg.ID == id {
			cp := *sg
			var org uuid.UUID
			if c := s.findCase(sg.CaseID); c != nil {
				org = c.OrganizationID
			}
			return &cp, org, nil
		}
	}
	return nil, uuid.Nil, sightings.ErrSightingNotFound
}

func (s sightingStore) Review(_ context.Context, id uuid.UUID, status models.SightingStatus, reviewer uuid.UUID) (*models.Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.sightings {
		if sg.ID == id && sg.Status == models.SightingPending {
			sg.Status, sg.VerifiedBy = status, &reviewer
			cp := *sg
			return &cp, nil
		}
	}
	return nil, sightings.ErrNotPending
}
