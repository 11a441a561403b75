package api

import "github.com/google/uuid"

// createSessionRequest is the body of POST /api/v1/sessions.
type createSessionRequest struct {
	SessionType string `json:"session_type"`
	Language    string `json:"language,omitempty"`
}

// appendBlockRequest is the body of POST /api/v1/sessions/:id/blocks.
type appendBlockRequest struct {
	BlockType   string         `json:"block_type"`
	TextContent string         `json:"text_content,omitempty"`
	MediaURL    string         `json:"media_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// presignRequest is the body of POST /api/v1/uploads/presign.
type presignRequest struct {
	SessionID   uuid.UUID `json:"session_id"`
	Type        string    `json:"type"`
	ContentType string    `json:"content_type"`
}

// commitRequest is the body of POST /api/v1/uploads/commit.
type commitRequest struct {
	MediaID   uuid.UUID `json:"media_id"`
	SizeBytes *int64    `json:"size_bytes,omitempty"`
}

// preferredLanguageRequest is the body of POST /api/v1/me/preferred-language.
type preferredLanguageRequest struct {
	Language string `json:"language"`
}

// fcmTokenRequest is the body of POST /api/v1/me/fcm-token.
type fcmTokenRequest struct {
	Token string `json:"token"`
}

// checkoutRequest is the body of POST /api/v1/payments/checkout.
type checkoutRequest struct {
	PackageID  string `json:"package_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// paymentIntentRequest is the body of POST /api/v1/payments/payment-intent.
type paymentIntentRequest struct {
	PackageID string `json:"package_id"`
}

// searchRequest is the body of POST /api/v1/search/semantic.
type searchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}
