package embedding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/memora-app/memora/pkg/models"
)

// Repository stores and queries embedding vectors via pgvector.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an embedding repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch stores one batch of chunk embeddings in a single transaction.
// Vectors and chunks correspond by index.
func (r *Repository) InsertBatch(ctx context.Context, sessionID uuid.UUID, provider string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(
			`INSERT INTO embeddings (session_id, provider, embedding, chunk_text) VALUES ($1, $2, $3, $4)`,
			sessionID, provider, pgvector.NewVector(vectors[i]), chunk,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit embeddings: %w", err)
	}
	return nil
}

// CountBySession returns the number of stored vectors for a session.
func (r *Repository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM embeddings WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// DeleteBySession removes all vectors for a session (used on reprocess to
// avoid duplicate chunks).
func (r *Repository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM embeddings WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

// Search finds the best-matching chunk per session among sessionIDs using
// cosine distance (<=>). minSimilarity in [0,1] translates to a distance
// cutoff of 1 - minSimilarity. Results are ordered by similarity, best first.
func (r *Repository) Search(ctx context.Context, queryVector []float32, sessionIDs []uuid.UUID, limit int, minSimilarity float64) ([]models.SearchResult, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	maxDistance := 1 - minSimilarity

	rows, err := r.pool.Query(ctx, `
		SELECT session_id, chunk_text, similarity, suggested_title, ai_summary
		FROM (
			SELECT DISTINCT ON (e.session_id)
				e.session_id,
				e.chunk_text,
				1 - (e.embedding <=> $1) AS similarity,
				s.suggested_title,
				s.ai_summary
			FROM embeddings e
			JOIN sessions s ON s.id = e.session_id
			WHERE e.session_id = ANY($2)
			  AND (e.embedding <=> $1) <= $3
			ORDER BY e.session_id, e.embedding <=> $1
		) best
		ORDER BY similarity DESC
		LIMIT $4`,
		pgvector.NewVector(queryVector), sessionIDs, maxDistance, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.SessionID, &r.ChunkText, &r.Similarity, &r.Title, &r.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return results, nil
}
