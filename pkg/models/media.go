package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaType distinguishes audio uploads from image uploads.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeImage MediaType = "image"
)

// ValidMediaType reports whether t is a known media type.
func ValidMediaType(t MediaType) bool {
	return t == MediaTypeAudio || t == MediaTypeImage
}

// MediaStatus is the upload state of a media file.
// pending: presigned URL issued, object not confirmed.
// uploaded: client committed the upload; the object is assumed present.
type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusUploaded MediaStatus = "uploaded"
)

// MediaFile is one object in blob storage tied to a session.
type MediaFile struct {
	ID          uuid.UUID   `json:"id"`
	SessionID   uuid.UUID   `json:"session_id"`
	MediaType   MediaType   `json:"media_type"`
	ObjectKey   string      `json:"object_key"`
	ContentType string      `json:"content_type"`
	SizeBytes   *int64      `json:"size_bytes,omitempty"`
	Status      MediaStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}
