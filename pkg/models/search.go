package models

import "github.com/google/uuid"

// SearchResult is one semantic-search hit, grouped per session with the
// best (lowest-distance) chunk for that session.
type SearchResult struct {
	SessionID  uuid.UUID `json:"session_id"`
	ChunkText  string    `json:"chunk_text"`
	Similarity float64   `json:"similarity"`
	Title      *string   `json:"title,omitempty"`
	Summary    *string   `json:"summary,omitempty"`
}
