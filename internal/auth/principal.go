package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
)

// PrincipalStore loads the current state of a principal.
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

// Resolver turns a session credential into a principal. It never mutates state.
type Resolver struct {
	jwt    *JWTService
	store  PrincipalStore
	logger *zap.Logger
}

// NewResolver creates a principal resolver.
func NewResolver(jwt *JWTService, store PrincipalStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{jwt: jwt, store: store, logger: logger}
}

// ResolveCurrentPrincipal returns the principal behind token, or nil when the token is absent,
// malformed, expired, or names a user that no longer exists. Role and organization come from
// storage rather than the token, so edits and revocations apply immediately.
func (r *Resolver) ResolveCurrentPrincipal(ctx context.Context, token string) *models.Principal {
	if token == "" {
		return nil
	}
	claims, err := r.jwt.Validate(token)
	if err != nil {
		return nil
	}
	p, err := r.store.GetPrincipal(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			r.logger.Warn("resolve principal failed", zap.Error(err), zap.String("user_id", claims.UserID.String()))
		}
		return nil
	}
	return p
}

// RequireRole resolves the principal and checks its role against allowed.
func (r *Resolver) RequireRole(ctx context.Context, token string, allowed ...models.Role) (*models.Principal, error) {
	p := r.ResolveCurrentPrincipal(ctx, token)
	return CheckRole(p, allowed...)
}

// CheckRole applies the role rule to an already resolved principal (nil means anonymous).
func CheckRole(p *models.Principal, allowed ...models.Role) (*models.Principal, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	if len(allowed) > 0 && !p.HasRole(allowed...) {
		return nil, apperr.Unauthorized("")
	}
	return p, nil
}
