package auth

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
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user persistence and the organization+user registration write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, COALESCE(password_hash,''), name, role, organization_id,
	COALESCE(phone,''), is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.OrganizationID,
		&u.Phone, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email, or ErrUserNotFound.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if database.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetPrincipal returns the current role and organization of a user, joined with the organization name.
func (r *Repository) GetPrincipal(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	const q = `SELECT u.id, u.email, u.name, u.role, u.organization_id, COALESCE(o.name,''), u.is_verified
		FROM users u
		LEFT JOIN organizations o ON o.id = u.organization_id
		WHERE u.id = $1`
	var p models.Principal
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.UserID, &p.Email, &p.Name, &p.Role, &p.OrganizationID, &p.OrganizationName, &p.IsVerified)
	if database.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}

// Register inserts the organization and its first user in one transaction. Both are filled in place
// with generated ids and timestamps. A taken email on either row yields ErrDuplicateEmail.
func (r *Repository) Register(ctx context.Context, org *models.Organization, user *models.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const orgQ = `INSERT INTO organizations (name, type, contact_email, contact_phone, address, verification_status)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, orgQ, org.Name, string(org.Type), org.ContactEmail, org.ContactPhone, org.Address, string(org.VerificationStatus)).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return translateInsertErr("insert organization", err)
	}

	user.OrganizationID = &org.ID
	const userQ = `INSERT INTO users (email, password_hash, name, role, organization_id, phone, is_verified)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, NULLIF($6,''), $7)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, userQ, user.Email, user.PasswordHash, user.Name, string(user.Role), user.OrganizationID, user.Phone, user.IsVerified).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translateInsertErr("insert user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translateInsertErr("commit registration", err)
	}
	return nil
}

func translateInsertErr(op string, err error) error {
	if database.IsUniqueViolation(err, "users_email_key") || database.IsUniqueViolation(err, "organizations_contact_email_key") {
		return fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}
	return fmt.Errorf("%s: %w", op, err)
}
