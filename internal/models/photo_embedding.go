package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoEmbedding is the feature vector extracted from one case photo.
type PhotoEmbedding struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	PhotoURL  string    `json:"photo_url"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchConfidence buckets a similarity score for display.
type MatchConfidence string

const (
	MatchHigh   MatchConfidence = "high"
	MatchMedium MatchConfidence = "medium"
	MatchLow    MatchConfidence = "low"
)

// ConfidenceFor maps a similarity score in [0,1] to its bucket.
func ConfidenceFor(score float64) MatchConfidence {
	switch {
	case score >= 0.8:
		return MatchHigh
	case score >= 0.6:
		return MatchMedium
	default:
		return MatchLow
	}
}

// Match is one ranked candidate returned by photo matching.
type Match struct {
	CaseID           uuid.UUID       `json:"case_id"`
	ChildName        string          `json:"child_name"`
	CaseNumber       string          `json:"case_number"`
	PhotoURL         string          `json:"photo_url,omitempty"`
	SimilarityScore  float64         `json:"similarity_score"`
	Confidence       MatchConfidence `json:"confidence"`
	Age              *int            `json:"age,omitempty"`
	Gender           Gender          `json:"gender,omitempty"`
	LastSeenLocation string          `json:"last_seen_location"`
	LastSeenDate     time.Time       `json:"last_seen_date"`
	Priority         Priority        `json:"priority"`
	Status           CaseStatus      `json:"status"`
}

// NewMatch builds a match record from a case and its score.
func NewMatch(c Case, score float64) Match {
	m := Match{
		CaseID:           c.ID,
		ChildName:        c.ChildName,
		CaseNumber:       c.CaseNumber,
		SimilarityScore:  score,
		Confidence:       ConfidenceFor(score),
		Age:              c.Age,
		Gender:           c.Gender,
		LastSeenLocation: c.LastSeenLocation,
		LastSeenDate:     c.LastSeenDate,
		Priority:         c.Priority,
		Status:           c.Status,
	}
	if len(c.PhotoURLs) > 0 {
		m.PhotoURL = c.PhotoURLs[0]
	}
	return m
}
