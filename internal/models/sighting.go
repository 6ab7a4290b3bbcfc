package models

import (
	"time"

	"github.com/google/uuid"
)

// SightingStatus is the review state of a sighting.
type SightingStatus string

const (
	SightingPending       SightingStatus = "pending"
	SightingVerified      SightingStatus = "verified"
	SightingFalsePositive SightingStatus = "false_positive"
)

// Confidence bounds for a self-reported sighting.
const (
	MinConfidence = 1
	MaxConfidence = 5
)

// Sighting is a public report of having seen the subject of a case.
type Sighting struct {
	ID               uuid.UUID      `json:"id"`
	CaseID           uuid.UUID      `json:"case_id"`
	ReporterName     string         `json:"reporter_name"`
	ReporterEmail    string         `json:"reporter_email"`
	ReporterPhone    string         `json:"reporter_phone"`
	SightingLocation string         `json:"sighting_location"`
	SightingDate     time.Time      `json:"sighting_date"`
	SightingTime     string         `json:"sighting_time,omitempty"`
	Description      string         `json:"description"`
	PhotoURLs        []string       `json:"photo_urls"`
	ConfidenceLevel  *int           `json:"confidence_level,omitempty"`
	Status           SightingStatus `json:"status"`
	VerifiedBy       *uuid.UUID     `json:"verified_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// PublicSighting is the anonymous view of a sighting. It carries no reporter
// contact details and no reviewer identity.
type PublicSighting struct {
	ID               uuid.UUID      `json:"id"`
	CaseID           uuid.UUID      `json:"case_id"`
	SightingLocation string         `json:"sighting_location"`
	SightingDate     time.Time      `json:"sighting_date"`
	SightingTime     string         `json:"sighting_time,omitempty"`
	Description      string         `json:"description"`
	PhotoURLs        []string       `json:"photo_urls"`
	ConfidenceLevel  *int           `json:"confidence_level,omitempty"`
	Status           SightingStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Public returns the anonymous view of s.
func (s *Sighting) Public() PublicSighting {
	photos := s.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return PublicSighting{
		ID:               s.ID,
		CaseID:           s.CaseID,
		SightingLocation: s.SightingLocation,
		SightingDate:     s.SightingDate,
		SightingTime:     s.SightingTime,
		Description:      s.Description,
		PhotoURLs:        photos,
		ConfidenceLevel:  s.ConfidenceLevel,
		Status:           s.Status,
		CreatedAt:        s.CreatedAt,
	}
}

// PublicSightings maps a list of sightings to their anonymous views. The result is never nil.
func PublicSightings(list []*Sighting) []PublicSighting {
	out := make([]PublicSighting, 0, len(list))
	for _, s := range list {
		out = append(out, s.Public())
	}
	return out
}
