package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/database"
)

var (
	ErrCaseNotFound        = errors.New("case not found")
	ErrDuplicateCaseNumber = errors.New("case number already exists")
)

// DefaultListLimit caps case listings when the caller sets no limit.
const DefaultListLimit = 1000

// Repository handles case persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cases repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseColumns = `id, child_name, age, COALESCE(gender,''), COALESCE(description,''), last_seen_location,
	last_seen_date, case_number, status, priority, organization_id, created_by, photo_urls, additional_info,
	created_at, updated_at`

func scanCase(row pgx.Row) (*models.Case, error) {
	var c models.Case
	if err := row.Scan(&c.ID, &c.ChildName, &c.Age, &c.Gender, &c.Description, &c.LastSeenLocation,
		&c.LastSeenDate, &c.CaseNumber, &c.Status, &c.Priority, &c.OrganizationID, &c.CreatedBy,
		&c.PhotoURLs, &c.AdditionalInfo, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if c.PhotoURLs == nil {
		c.PhotoURLs = []string{}
	}
	if c.AdditionalInfo == nil {
		c.AdditionalInfo = map[string]string{}
	}
	return &c, nil
}

// List returns cases matching every set filter field, newest first.
func (r *Repository) List(ctx context.Context, f models.CaseFilter) ([]*models.Case, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.OrganizationID != nil {
		args = append(args, *f.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	q := `SELECT ` + caseColumns + ` FROM cases`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()
	var list []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListActiveByIDs returns the active cases among ids, in no particular order.
func (r *Repository) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ANY($1) AND status = 'active'`, ids)
	if err != nil {
		return nil, fmt.Errorf("list cases by id: %w", err)
	}
	defer rows.Close()
	var list []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetByID returns a case or ErrCaseNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// Create inserts a case and fills in its id and timestamps. A taken case number yields ErrDuplicateCaseNumber.
func (r *Repository) Create(ctx context.Context, c *models.Case) error {
	if c.PhotoURLs == nil {
		c.PhotoURLs = []string{}
	}
	if c.AdditionalInfo == nil {
		c.AdditionalInfo = map[string]string{}
	}
	const q = `INSERT INTO cases (child_name, age, gender, description, last_seen_location, last_seen_date,
		case_number, status, priority, organization_id, created_by, photo_urls, additional_info)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.ChildName, c.Age, string(c.Gender), c.Description, c.LastSeenLocation,
		c.LastSeenDate, c.CaseNumber, string(c.Status), string(c.Priority), c.OrganizationID, c.CreatedBy,
		c.PhotoURLs, c.AdditionalInfo).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if database.IsUniqueViolation(err, "cases_case_number_key") {
		return ErrDuplicateCaseNumber
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of an active case. It returns ErrCaseNotFound when no active case has id.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CaseStatus) (*models.Case, error) {
	const q = `UPDATE cases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + caseColumns
	c, err := scanCase(r.pool.QueryRow(ctx, q, id, string(status)))
	if database.IsNoRows(err) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update case status: %w", err)
	}
	return c, nil
}

// AppendPhoto adds a photo URL to the end of a case's photo list.
func (r *Repository) AppendPhoto(ctx context.Context, id uuid.UUID, photoURL string) (*models.Case, error) {
	const q = `UPDATE cases SET photo_urls = array_append(photo_urls, $2), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + caseColumns
	c, err := scanCase(r.pool.QueryRow(ctx, q, id, photoURL))
	if database.IsNoRows(err) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("append case photo: %w", err)
	}
	return c, nil
}

// Stats counts an organization's cases by status and urgent priority.
func (r *Repository) Stats(ctx context.Context, orgID uuid.UUID) (*models.CaseStats, error) {
	const q = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'active'),
		COUNT(*) FILTER (WHERE status = 'found'),
		COUNT(*) FILTER (WHERE status = 'closed'),
		COUNT(*) FILTER (WHERE priority = 'urgent')
		FROM cases WHERE organization_id = $1`
	var s models.CaseStats
	if err := r.pool.QueryRow(ctx, q, orgID).Scan(&s.Total, &s.Active, &s.Found, &s.Closed, &s.Urgent); err != nil {
		return nil, fmt.Errorf("case stats: %w", err)
	}
	return &s, nil
}
