package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/storage"
)

// UploadService implements the presign/commit media upload protocol.
// Clients PUT bytes directly to object storage; the API server only hands
// out presigned URLs and tracks upload state.
type UploadService struct {
	pool     *pgxpool.Pool
	sessions *SessionService
	store    *storage.Gateway // nil when object storage is not configured
}

// NewUploadService creates a new upload service. store may be nil; all
// operations then fail with ErrStorageUnavailable.
func NewUploadService(pool *pgxpool.Pool, sessions *SessionService, store *storage.Gateway) *UploadService {
	return &UploadService{pool: pool, sessions: sessions, store: store}
}

// PresignedUpload is the response to a presign request.
type PresignedUpload struct {
	MediaID   uuid.UUID `json:"media_id"`
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresIn int       `json:"expires_in"`
}

// Presign validates the request, records a pending media file, and returns
// a presigned PUT URL bound to the content type. The session must be open
// and owned by the caller.
func (s *UploadService) Presign(ctx context.Context, userID, sessionID uuid.UUID, mediaType models.MediaType, contentType string, ttl time.Duration) (*PresignedUpload, error) {
	if mediaType != models.MediaTypeAudio && mediaType != models.MediaTypeImage {
		return nil, NewValidationError("media_type", "must be one of: audio, image")
	}
	if !storage.ValidContentType(mediaType, contentType) {
		return nil, NewValidationError("content_type",
			fmt.Sprintf("%q is not allowed for media type %s", contentType, mediaType))
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	session, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusOpen {
		return nil, ErrSessionNotOpen
	}

	objectKey := storage.ObjectKey(sessionID, mediaType, contentType)

	var m models.MediaFile
	err = s.pool.QueryRow(ctx, `
		INSERT INTO media_files (session_id, media_type, object_key, content_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, media_type, object_key, content_type, size_bytes, status, created_at`,
		sessionID, mediaType, objectKey, contentType,
	).Scan(&m.ID, &m.SessionID, &m.MediaType, &m.ObjectKey, &m.ContentType,
		&m.SizeBytes, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record media file: %w", err)
	}

	uploadURL, err := s.store.PresignUpload(ctx, objectKey, contentType)
	if err != nil {
		// The pending row stays; the retention sweeper reaps it.
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &PresignedUpload{
		MediaID:   m.ID,
		ObjectKey: m.ObjectKey,
		UploadURL: uploadURL,
		ExpiresIn: int(ttl.Seconds()),
	}, nil
}

// Commit marks a media file as uploaded after the client finished its PUT.
// Committing an already-uploaded file is a no-op returning the current row.
// Ownership is enforced through the owning session; another user's media
// is reported as not found.
func (s *UploadService) Commit(ctx context.Context, userID, mediaID uuid.UUID, sizeBytes *int64) (*models.MediaFile, error) {
	var m models.MediaFile
	err := s.pool.QueryRow(ctx, `
		UPDATE media_files m
		SET status = $1, size_bytes = COALESCE($2, m.size_bytes)
		FROM sessions sess
		WHERE m.id = $3 AND m.session_id = sess.id AND sess.user_id = $4
		RETURNING m.id, m.session_id, m.media_type, m.object_key, m.content_type, m.size_bytes, m.status, m.created_at`,
		models.MediaStatusUploaded, sizeBytes, mediaID, userID,
	).Scan(&m.ID, &m.SessionID, &m.MediaType, &m.ObjectKey, &m.ContentType,
		&m.SizeBytes, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to commit media file: %w", err)
	}
	return &m, nil
}

// Delete removes a media file row and, best-effort, its stored object.
func (s *UploadService) Delete(ctx context.Context, userID, sessionID, mediaID uuid.UUID) error {
	if _, err := s.sessions.GetByID(ctx, userID, sessionID); err != nil {
		return err
	}

	var objectKey string
	err := s.pool.QueryRow(ctx, `
		DELETE FROM media_files WHERE id = $1 AND session_id = $2
		RETURNING object_key`,
		mediaID, sessionID,
	).Scan(&objectKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete media file: %w", err)
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, objectKey); err != nil {
			slog.Warn("Failed to delete media object from storage",
				"object_key", objectKey, "error", err)
		}
	}
	return nil
}

// UploadedMedia returns a session's uploaded media of one type, for the
// processing pipeline. Pending rows are invisible to it.
func (s *UploadService) UploadedMedia(ctx context.Context, sessionID uuid.UUID, mediaType models.MediaType) ([]models.MediaFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, media_type, object_key, content_type, size_bytes, status, created_at
		FROM media_files
		WHERE session_id = $1 AND media_type = $2 AND status = $3
		ORDER BY created_at, id`,
		sessionID, mediaType, models.MediaStatusUploaded)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploaded media: %w", err)
	}
	defer rows.Close()

	var media []models.MediaFile
	for rows.Next() {
		var m models.MediaFile
		if err := rows.Scan(&m.ID, &m.SessionID, &m.MediaType, &m.ObjectKey,
			&m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media file: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}
