package api

import "github.com/memora-app/memora/pkg/models"

// listSessionsResponse wraps a paginated session listing.
type listSessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// creditsResponse is the body of GET /api/v1/me/credits.
type creditsResponse struct {
	Credits int `json:"credits"`
}

// searchResponse wraps semantic search hits.
type searchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// webhookResponse acknowledges a processed webhook delivery.
type webhookResponse struct {
	Status string `json:"status"`
}

// statusResponse is a minimal acknowledgement body.
type statusResponse struct {
	Status string `json:"status"`
}
