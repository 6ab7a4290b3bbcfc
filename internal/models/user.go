package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RolePublic    Role = "public"
	RoleNGOAdmin  Role = "ngo_admin"
	RoleNGOMember Role = "ngo_member"
	RolePolice    Role = "police"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePublic, RoleNGOAdmin, RoleNGOMember, RolePolice, RoleAdmin:
		return true
	}
	return false
}

// CaseManagerRoles may create and manage cases.
var CaseManagerRoles = []Role{RoleNGOAdmin, RoleNGOMember, RolePolice, RoleAdmin}

// User represents a platform account.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	IsVerified     bool       `json:"is_verified"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Principal is the authenticated identity derived from a session credential.
type Principal struct {
	UserID           uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             Role       `json:"role"`
	OrganizationID   *uuid.UUID `json:"organization_id,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	IsVerified       bool       `json:"is_verified"`
}

// HasRole reports whether the principal's role is one of roles.
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// CanManage reports whether the principal may act on records owned by orgID.
// Admins may act on any organization's records.
func (p *Principal) CanManage(orgID uuid.UUID) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.OrganizationID != nil && *p.OrganizationID == orgID
}
