package photomatch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findthem/backend/internal/models"
)

// Repository persists photo embeddings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an embeddings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores the embedding of one case photo, replacing an earlier vector for the same photo.
func (r *Repository) Upsert(ctx context.Context, e *models.PhotoEmbedding) error {
	const q = `INSERT INTO photo_embeddings (case_id, photo_url, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT photo_embeddings_case_photo_key
		DO UPDATE SET embedding = EXCLUDED.embedding, created_at = NOW()
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, e.CaseID, e.PhotoURL, e.Embedding).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// ListActive returns every stored embedding that belongs to an active case.
func (r *Repository) ListActive(ctx context.Context) ([]*models.PhotoEmbedding, error) {
	const q = `SELECT pe.id, pe.case_id, pe.photo_url, pe.embedding, pe.created_at
		FROM photo_embeddings pe
		JOIN cases c ON c.id = pe.case_id
		WHERE c.status = 'active'`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()
	var list []*models.PhotoEmbedding
	for rows.Next() {
		var e models.PhotoEmbedding
		if err := rows.Scan(&e.ID, &e.CaseID, &e.PhotoURL, &e.Embedding, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
