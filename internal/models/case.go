package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CaseActive CaseStatus = "active"
	CaseFound  CaseStatus = "found"
	CaseClosed CaseStatus = "closed"
)

// Valid reports whether s is a known case status.
func (s CaseStatus) Valid() bool {
	return s == CaseActive || s == CaseFound || s == CaseClosed
}

// Priority ranks case urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Gender of the missing child, when known.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is a known gender value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Case describes one missing child. OrganizationID and CreatedBy never change after creation.
type Case struct {
	ID               uuid.UUID         `json:"id"`
	ChildName        string            `json:"child_name"`
	Age              *int              `json:"age,omitempty"`
	Gender           Gender            `json:"gender,omitempty"`
	Description      string            `json:"description,omitempty"`
	LastSeenLocation string            `json:"last_seen_location"`
	LastSeenDate     time.Time         `json:"last_seen_date"`
	CaseNumber       string            `json:"case_number"`
	Status           CaseStatus        `json:"status"`
	Priority         Priority          `json:"priority"`
	OrganizationID   uuid.UUID         `json:"organization_id"`
	CreatedBy        uuid.UUID         `json:"created_by"`
	PhotoURLs        []string          `json:"photo_urls"`
	AdditionalInfo   map[string]string `json:"additional_info"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CaseFilter selects cases; all set fields must match.
type CaseFilter struct {
	Status         *CaseStatus
	OrganizationID *uuid.UUID
	Limit          int
}

// CaseStats summarizes an organization's cases for its dashboard.
type CaseStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Found  int `json:"found"`
	Closed int `json:"closed"`
	Urgent int `json:"urgent"`
}
