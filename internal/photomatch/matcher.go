package photomatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/findthem/backend/internal/apperr"
	"github.com/findthem/backend/internal/models"
)

// Matcher ranks active cases against a query image.
type Matcher interface {
	Match(ctx context.Context, image []byte, contentType string) ([]models.Match, error)
}

// CaseLookup is the case access matching needs.
type CaseLookup interface {
	List(ctx context.Context, f models.CaseFilter) ([]*models.Case, error)
	ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Case, error)
}

// EmbeddingStore lists the stored vectors of active cases.
type EmbeddingStore interface {
	ListActive(ctx context.Context) ([]*models.PhotoEmbedding, error)
}

// rankMatches sorts by score descending, breaking ties by case id.
func rankMatches(ms []models.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].SimilarityScore != ms[j].SimilarityScore {
			return ms[i].SimilarityScore > ms[j].SimilarityScore
		}
		return ms[i].CaseID.String() < ms[j].CaseID.String()
	})
}

// EmbeddingMatcher scores each active case by the best cosine similarity between
// the query vector and any of the case's stored photo embeddings.
type EmbeddingMatcher struct {
	embedder   Embedder
	embeddings EmbeddingStore
	cases      CaseLookup
	minScore   float64
	limit      int
}

// NewEmbeddingMatcher creates a matcher keeping at most limit cases scoring at least minScore.
func NewEmbeddingMatcher(embedder Embedder, embeddings EmbeddingStore, cases CaseLookup, minScore float64, limit int) *EmbeddingMatcher {
	if limit <= 0 {
		limit = 10
	}
	return &EmbeddingMatcher{embedder: embedder, embeddings: embeddings, cases: cases, minScore: minScore, limit: limit}
}

type candidate struct {
	caseID   uuid.UUID
	photoURL string
	score    float64
}

func (m *EmbeddingMatcher) Match(ctx context.Context, img []byte, contentType string) ([]models.Match, error) {
	query, err := m.embedder.Embed(ctx, img, contentType)
	if errors.Is(err, ErrUndecodable) {
		return nil, apperr.Validation("photo", "could not be read as an image")
	}
	if err != nil {
		return nil, fmt.Errorf("embed query photo: %w", err)
	}
	stored, err := m.embeddings.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	best := make(map[uuid.UUID]candidate)
	for _, e := range stored {
		s := Cosine(query, e.Embedding)
		if s < m.minScore {
			continue
		}
		if cur, ok := best[e.CaseID]; !ok || s > cur.score {
			best[e.CaseID] = candidate{caseID: e.CaseID, photoURL: e.PhotoURL, score: s}
		}
	}
	ranked := make([]candidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].caseID.String() < ranked[j].caseID.String()
	})
	if len(ranked) > m.limit {
		ranked = ranked[:m.limit]
	}
	if len(ranked) == 0 {
		return []models.Match{}, nil
	}

	ids := make([]uuid.UUID, len(ranked))
	for i, c := range ranked {
		ids[i] = c.caseID
	}
	list, err := m.cases.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Case, len(list))
	for _, c := range list {
		byID[c.ID] = c
	}
	out := make([]models.Match, 0, len(ranked))
	for _, r := range ranked {
		c, ok := byID[r.caseID]
		if !ok {
			continue
		}
		mt := models.NewMatch(*c, r.score)
		mt.PhotoURL = r.photoURL
		out = append(out, mt)
	}
	return out, nil
}

// stubCandidates is how many active cases StubMatcher scores.
const stubCandidates = 5

// StubMatcher is a development fixture: it ignores the image and gives up to five
// active cases a uniform random score in [0.6, 1.0].
type StubMatcher struct {
	cases CaseLookup

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewStubMatcher creates the fixture matcher.
func NewStubMatcher(cases CaseLookup, seed int64) *StubMatcher {
	return &StubMatcher{cases: cases, rnd: rand.New(rand.NewSource(seed))}
}

func (m *StubMatcher) Match(ctx context.Context, _ []byte, _ string) ([]models.Match, error) {
	active := models.CaseActive
	list, err := m.cases.List(ctx, models.CaseFilter{Status: &active, Limit: stubCandidates})
	if err != nil {
		return nil, err
	}
	out := make([]models.Match, 0, len(list))
	m.mu.Lock()
	for _, c := range list {
		out = append(out, models.NewMatch(*c, 0.6+m.rnd.Float64()*0.4))
	}
	m.mu.Unlock()
	rankMatches(out)
	return out, nil
}
