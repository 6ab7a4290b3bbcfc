package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationType is the kind of reporting body.
type OrganizationType string

const (
	OrgTypeNGO        OrganizationType = "ngo"
	OrgTypePolice     OrganizationType = "police"
	OrgTypeGovernment OrganizationType = "government"
)

// Valid reports whether t is a known organization type.
func (t OrganizationType) Valid() bool {
	switch t {
	case OrgTypeNGO, OrgTypePolice, OrgTypeGovernment:
		return true
	}
	return false
}

// VerificationStatus tracks administrative review of an organization.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Organization is an NGO, police or government body that owns cases and employs users.
type Organization struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Type               OrganizationType   `json:"type"`
	ContactEmail       string             `json:"contact_email"`
	ContactPhone       string             `json:"contact_phone,omitempty"`
	Address            string             `json:"address,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
