package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a capture session.
type SessionStatus string

const (
	SessionStatusOpen              SessionStatus = "open"
	SessionStatusPendingProcessing SessionStatus = "pending_processing"
	SessionStatusProcessing        SessionStatus = "processing"
	SessionStatusProcessed         SessionStatus = "processed"
	SessionStatusNoCredits         SessionStatus = "no_credits"
	SessionStatusFailed            SessionStatus = "failed"
)

// ValidSessionStatus reports whether s is a known session status.
func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusOpen, SessionStatusPendingProcessing, SessionStatusProcessing,
		SessionStatusProcessed, SessionStatusNoCredits, SessionStatusFailed:
		return true
	}
	return false
}

// BlockType identifies the kind of content a session block carries.
type BlockType string

const (
	BlockTypeText BlockType = "text"
	// BlockTypeVoice points at an uploaded audio object awaiting transcription.
	BlockTypeVoice  BlockType = "voice"
	BlockTypeImage  BlockType = "image"
	BlockTypeMarker BlockType = "marker"
	// BlockTypeTranscription is appended by the pipeline with transcribed audio text.
	BlockTypeTranscription BlockType = "transcription_backend"
	// BlockTypeImageDescription is appended by the pipeline with a vision description.
	BlockTypeImageDescription BlockType = "image_description"
)

// ValidBlockType reports whether t is accepted on block append.
// Pipeline-generated types are not client-writable.
func ValidBlockType(t BlockType) bool {
	switch t {
	case BlockTypeText, BlockTypeVoice, BlockTypeImage, BlockTypeMarker:
		return true
	}
	return false
}

// Session is a multi-modal capture session owned by a single user.
type Session struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	SessionType    string        `json:"session_type"`
	Status         SessionStatus `json:"status"`
	Language       string        `json:"language,omitempty"`
	AISummary      *string       `json:"ai_summary,omitempty"`
	SuggestedTitle *string       `json:"suggested_title,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	FinalizedAt    *time.Time    `json:"finalized_at,omitempty"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
}

// SessionBlock is one ordered content unit inside a session.
type SessionBlock struct {
	ID          uuid.UUID      `json:"id"`
	SessionID   uuid.UUID      `json:"session_id"`
	BlockType   BlockType      `json:"block_type"`
	TextContent *string        `json:"text_content,omitempty"`
	MediaURL    *string        `json:"media_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SessionDetail bundles a session with its blocks and media for the detail endpoint.
type SessionDetail struct {
	Session
	Blocks []SessionBlock `json:"blocks"`
	Media  []MediaFile    `json:"media"`
}
