package organizations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/database"
)

var (
	ErrNotFound   = errors.New("organization not found")
	ErrNotPending = errors.New("organization is not pending verification")
)

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, type, contact_email, COALESCE(contact_phone,''), COALESCE(address,''),
	verification_status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrg(row scanner) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Type, &o.ContactEmail, &o.ContactPhone, &o.Address,
		&o.VerificationStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o, err := scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// ListVerified returns verified organizations ordered by name.
func (r *Repository) ListVerified(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations
		WHERE verification_status = 'verified' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// UpdateVerification moves a pending organization to status. Organizations that were already
// reviewed yield ErrNotPending.
func (r *Repository) UpdateVerification(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error) {
	const q = `UPDATE organizations SET verification_status = $2, updated_at = NOW()
		WHERE id = $1 AND verification_status = 'pending'
		RETURNING ` + orgColumns
	o, err := scanOrg(r.pool.QueryRow(ctx, q, id, string(status)))
	if database.IsNoRows(err) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("update verification: %w", err)
	}
	return o, nil
}

// Member is a user of an organization as listed to its managers.
type Member struct {
	UserID     uuid.UUID   `json:"user_id"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Role       models.Role `json:"role"`
	IsVerified bool        `json:"is_verified"`
	AddedAt    time.Time   `json:"added_at"`
}

// ListMembers returns the users of an organization, oldest first.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT id, email, name, role, is_verified, created_at
		FROM users WHERE organization_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.Role, &m.IsVerified, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
