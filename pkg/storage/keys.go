package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/memora-app/memora/pkg/models"
)

// contentTypeExtensions maps MIME types to object key extensions.
var contentTypeExtensions = map[string]string{
	// Audio
	"audio/m4a":  "m4a",
	"audio/mp4":  "m4a",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/wav":  "wav",
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
	"audio/aac":  "aac",
	// Images
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
	"image/heif": "heif",
}

// allowedContentTypes is the per-media-type allowlist for presign requests.
var allowedContentTypes = map[models.MediaType][]string{
	models.MediaTypeAudio: {
		"audio/m4a", "audio/mp4", "audio/mpeg", "audio/mp3",
		"audio/wav", "audio/webm", "audio/ogg", "audio/aac",
	},
	models.MediaTypeImage: {
		"image/jpeg", "image/jpg", "image/png",
		"image/webp", "image/heic", "image/heif",
	},
}

// ValidContentType reports whether contentType is allowed for mediaType.
// Matching is case-insensitive.
func ValidContentType(mediaType models.MediaType, contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, allowed := range allowedContentTypes[mediaType] {
		if ct == allowed {
			return true
		}
	}
	return false
}

// Extension returns the object key extension for a content type,
// falling back to "bin" for unknown types.
func Extension(contentType string) string {
	if ext, ok := contentTypeExtensions[strings.ToLower(contentType)]; ok {
		return ext
	}
	return "bin"
}

// ObjectKey builds a collision-free object key for an upload.
//
// Pattern: sessions/{session_id}/{media_type}/{uuid}.{ext}
// Grouping by session keeps per-session cleanup a prefix operation.
func ObjectKey(sessionID uuid.UUID, mediaType models.MediaType, contentType string) string {
	return fmt.Sprintf("sessions/%s/%s/%s.%s",
		sessionID, mediaType, uuid.New(), Extension(contentType))
}
