package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/pkg/utils"
)

// MinPasswordLength applies when a password is supplied at registration.
const MinPasswordLength = 8

// Store is the persistence the auth service needs.
type Store interface {
	PrincipalStore
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Register(ctx context.Context, org *models.Organization, user *models.User) error
}

// OrganizationInput is the organization half of a registration.
type OrganizationInput struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
}

// UserInput is the user half of a registration.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// RegisterInput is the registration boundary: one organization and its first user.
type RegisterInput struct {
	Organization OrganizationInput `json:"organization"`
	User         UserInput         `json:"user"`
}

// SelfRegisterRoles are the roles an organization's first user may claim.
var SelfRegisterRoles = []models.Role{models.RoleNGOAdmin, models.RoleNGOMember, models.RolePolice}

// Service implements registration and sign-in.
type Service struct {
	store              Store
	jwt                *JWTService
	demoPasswordBypass bool
	logger             *zap.Logger
}

// NewService creates an auth service. demoPasswordBypass accepts any password; it must only be set
// from explicit development configuration.
func NewService(store Store, jwt *JWTService, demoPasswordBypass bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if demoPasswordBypass {
		logger.Warn("demo password bypass enabled: any password is accepted at sign-in")
	}
	return &Service{store: store, jwt: jwt, demoPasswordBypass: demoPasswordBypass, logger: logger}
}

// Register creates a pending organization and its unverified first user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Organization, *models.User, error) {
	org, user, err := buildRegistration(in)
	if err != nil {
		return nil, nil, err
	}
	if in.User.Password != "" {
		hash, err := utils.HashPassword(in.User.Password)
		if err != nil {
			return nil, nil, apperr.Storage("hash password", err)
		}
		user.PasswordHash = hash
	}
	if err := s.store.Register(ctx, org, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, nil, apperr.DuplicateEmail("register", err)
		}
		s.logger.Error("registration failed", zap.Error(err), zap.String("org_type", string(org.Type)))
		return nil, nil, apperr.Storage("register", err)
	}
	return org, user, nil
}

func buildRegistration(in RegisterInput) (*models.Organization, *models.User, error) {
	o, u := in.Organization, in.User
	switch {
	case strings.TrimSpace(o.Name) == "":
		return nil, nil, apperr.MissingField("organization.name")
	case o.Type == "":
		return nil, nil, apperr.MissingField("organization.type")
	case strings.TrimSpace(o.ContactEmail) == "":
		return nil, nil, apperr.MissingField("organization.contact_email")
	case strings.TrimSpace(u.Name) == "":
		return nil, nil, apperr.MissingField("user.name")
	case strings.TrimSpace(u.Email) == "":
		return nil, nil, apperr.MissingField("user.email")
	case u.Role == "":
		return nil, nil, apperr.MissingField("user.role")
	}
	orgType := models.OrganizationType(o.Type)
	if !orgType.Valid() {
		return nil, nil, apperr.Validation("organization.type", "must be one of ngo, police, government")
	}
	if !validEmail(o.ContactEmail) {
		return nil, nil, apperr.Validation("organization.contact_email", "invalid email address")
	}
	if !validEmail(u.Email) {
		return nil, nil, apperr.Validation("user.email", "invalid email address")
	}
	role := models.Role(u.Role)
	allowed := false
	for _, r := range SelfRegisterRoles {
		if role == r {
			allowed = true
		}
	}
	if !allowed {
		return nil, nil, apperr.Validation("user.role", "must be one of ngo_admin, ngo_member, police")
	}
	if u.Password != "" && len(u.Password) < MinPasswordLength {
		return nil, nil, apperr.Validation("user.password", "must be at least 8 characters")
	}
	if len(u.Password) > utils.MaxPasswordBytes {
		return nil, nil, apperr.Validation("user.password", "must be at most 72 bytes")
	}

	org := &models.Organization{
		Name:               strings.TrimSpace(o.Name),
		Type:               orgType,
		ContactEmail:       normalizeEmail(o.ContactEmail),
		ContactPhone:       strings.TrimSpace(o.ContactPhone),
		Address:            strings.TrimSpace(o.Address),
		VerificationStatus: models.VerificationPending,
	}
	user := &models.User{
		Email:      normalizeEmail(u.Email),
		Name:       strings.TrimSpace(u.Name),
		Role:       role,
		Phone:      strings.TrimSpace(u.Phone),
		IsVerified: false,
	}
	return org, user, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Principal, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil, apperr.MissingField("email")
	}
	if password == "" {
		return "", nil, apperr.MissingField("password")
	}
	invalid := &apperr.Error{Kind: apperr.KindUnauthenticated, Msg: "invalid email or password"}

	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, invalid
	}
	if err != nil {
		s.logger.Error("sign-in lookup failed", zap.Error(err))
		return "", nil, apperr.Storage("login", err)
	}
	if s.demoPasswordBypass {
		s.logger.Warn("sign-in accepted by demo password bypass", zap.String("user_id", user.ID.String()))
	} else if user.PasswordHash == "" || !utils.CheckPassword(password, user.PasswordHash) {
		return "", nil, invalid
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		return "", nil, apperr.Storage("issue token", err)
	}
	p, err := s.store.GetPrincipal(ctx, user.ID)
	if err != nil {
		return "", nil, apperr.Storage("load principal", err)
	}
	return token, p, nil
}

// Principal loads the principal for a user id.
func (s *Service) Principal(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	p, err := s.store.GetPrincipal(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Storage("get principal", err)
	}
	return p, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Address == strings.TrimSpace(s)
}
