package sightings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/database"
)

var (
	ErrCaseNotFound     = errors.New("case not found")
	ErrSightingNotFound = errors.New("sighting not found")
	ErrNotPending       = errors.New("sighting already reviewed")
)

// Repository handles sighting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sightings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sightingColumns = `s.id, s.case_id, s.reporter_name, s.reporter_email, s.reporter_phone, s.sighting_location,
	s.sighting_date, COALESCE(s.sighting_time,''), s.description, s.photo_urls, s.confidence_level, s.status,
	s.verified_by, s.created_at, s.updated_at`

func scanSighting(row pgx.Row, extra ...any) (*models.Sighting, error) {
	var (
		s          models.Sighting
		confidence *int16
	)
	dest := []any{&s.ID, &s.CaseID, &s.ReporterName, &s.ReporterEmail, &s.ReporterPhone, &s.SightingLocation,
		&s.SightingDate, &s.SightingTime, &s.Description, &s.PhotoURLs, &confidence, &s.Status,
		&s.VerifiedBy, &s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if confidence != nil {
		v := int(*confidence)
		s.ConfidenceLevel = &v
	}
	if s.PhotoURLs == nil {
		s.PhotoURLs = []string{}
	}
	return &s, nil
}

func scanList(rows pgx.Rows) ([]*models.Sighting, error) {
	defer rows.Close()
	var list []*models.Sighting
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListByCase returns a case's sightings, newest first.
func (r *Repository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.Sighting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sightingColumns+` FROM sightings s
		WHERE s.case_id = $1 ORDER BY s.created_at DESC, s.id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	return scanList(rows)
}

// ListRecentByOrganization returns the newest sightings across an organization's cases.
func (r *Repository) ListRecentByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Sighting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sightingColumns+` FROM sightings s
		JOIN cases c ON c.id = s.case_id
		WHERE c.organization_id = $1
		ORDER BY s.created_at DESC, s.id LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sightings: %w", err)
	}
	return scanList(rows)
}

// Create inserts a sighting and returns the organization owning its case. A missing case yields ErrCaseNotFound.
func (r *Repository) Create(ctx context.Context, s *models.Sighting) (uuid.UUID, error) {
	if s.PhotoURLs == nil {
		s.PhotoURLs = []string{}
	}
	const q = `WITH c AS (SELECT id, organization_id FROM cases WHERE id = $1),
		ins AS (
			INSERT INTO sightings (case_id, reporter_name, reporter_email, reporter_phone, sighting_location,
				sighting_date, sighting_time, description, photo_urls, confidence_level, status)
			SELECT c.id, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9, $10, $11 FROM c
			RETURNING id, case_id, created_at, updated_at
		)
		SELECT ins.id, ins.created_at, ins.updated_at, c.organization_id FROM ins JOIN c ON c.id = ins.case_id`
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, q, s.CaseID, s.ReporterName, s.ReporterEmail, s.ReporterPhone, s.SightingLocation,
		s.SightingDate, s.SightingTime, s.Description, s.PhotoURLs, s.ConfidenceLevel, string(s.Status)).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &orgID)
	if database.IsNoRows(err) || database.IsForeignKeyViolation(err, "sightings_case_id_fkey") {
		return uuid.Nil, ErrCaseNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert sighting: %w", err)
	}
	return orgID, nil
}

// GetWithOwner returns a sighting and the organization owning its case.
func (r *Repository) GetWithOwner(ctx context.Context, id uuid.UUID) (*models.Sighting, uuid.UUID, error) {
	var orgID uuid.UUID
	s, err := scanSighting(r.pool.QueryRow(ctx, `SELECT `+sightingColumns+`, c.organization_id FROM sightings s
		JOIN cases c ON c.id = s.case_id WHERE s.id = $1`, id), &orgID)
	if database.IsNoRows(err) {
		return nil, uuid.Nil, ErrSightingNotFound
	}
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("get sighting: %w", err)
	}
	return s, orgID, nil
}

// Review records the outcome of a pending sighting's review.
func (r *Repository) Review(ctx context.Context, id uuid.UUID, status models.SightingStatus, reviewer uuid.UUID) (*models.Sighting, error) {
	const q = `UPDATE sightings s SET status = $2, verified_by = $3, updated_at = NOW()
		WHERE s.id = $1 AND s.status = 'pending'
		RETURNING ` + sightingColumns
	s, err := scanSighting(r.pool.QueryRow(ctx, q, id, string(status), reviewer))
	if database.IsNoRows(err) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("review sighting: %w", err)
	}
	return s, nil
}
