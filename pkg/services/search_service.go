package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/memora-app/memora/pkg/ai"
	"github.com/memora-app/memora/pkg/embedding"
	"github.com/memora-app/memora/pkg/models"
)

// DefaultMinSimilarity is the cosine similarity cutoff below which matches
// are considered noise.
const DefaultMinSimilarity = 0.3

// SearchService answers semantic search queries over a user's processed
// sessions.
type SearchService struct {
	router     *ai.Router
	embeddings *embedding.Repository
	sessions   *SessionService
}

// NewSearchService creates a new search service.
func NewSearchService(router *ai.Router, embeddings *embedding.Repository, sessions *SessionService) *SearchService {
	return &SearchService{router: router, embeddings: embeddings, sessions: sessions}
}

// Enabled reports whether semantic search can run (embeddings configured).
func (s *SearchService) Enabled() bool {
	return s.router.CanEmbed()
}

// Search embeds the query and returns the best-matching chunk per session,
// restricted to sessions the user owns. minSimilarity <= 0 uses the default.
func (s *SearchService) Search(ctx context.Context, userID uuid.UUID, query string, limit int, minSimilarity float64) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewValidationError("query", "must not be empty")
	}
	if !s.Enabled() {
		return nil, NewValidationError("query", "semantic search is not enabled")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	sessionIDs, err := s.sessions.ProcessedSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return []models.SearchResult{}, nil
	}

	vectors, err := s.router.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	results, err := s.embeddings.Search(ctx, vectors[0], sessionIDs, limit, minSimilarity)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return results, nil
}
