package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/storage"
)

// SessionService manages session lifecycle: creation, block append,
// finalization with the atomic credit debit, and the status transitions
// driven by the pipeline.
type SessionService struct {
	pool    *pgxpool.Pool
	credits *CreditService
	store   *storage.Gateway // nil when object storage is not configured
}

// NewSessionService creates a new session service. store may be nil.
func NewSessionService(pool *pgxpool.Pool, credits *CreditService, store *storage.Gateway) *SessionService {
	return &SessionService{pool: pool, credits: credits, store: store}
}

const sessionColumns = `id, user_id, session_type, status, COALESCE(language, ''),
	ai_summary, suggested_title, created_at, updated_at, finalized_at, processed_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.SessionType, &s.Status, &s.Language,
		&s.AISummary, &s.SuggestedTitle, &s.CreatedAt, &s.UpdatedAt,
		&s.FinalizedAt, &s.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

// Create opens a new session.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, sessionType, language string) (*models.Session, error) {
	sessionType = strings.TrimSpace(sessionType)
	if sessionType == "" {
		sessionType = "mixed"
	}
	if len(sessionType) > 32 {
		return nil, NewValidationError("session_type", "must be at most 32 characters")
	}
	if language != "" && len(language) > 5 {
		return nil, NewValidationError("language", "must be a short language tag")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, session_type, language)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING `+sessionColumns,
		userID, sessionType, language)
	return scanSession(row)
}

// GetByID fetches a session, enforcing ownership. A session owned by a
// different user is reported as not found.
func (s *SessionService) GetByID(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID)
	return scanSession(row)
}

// GetDetail returns a session with its blocks and media files.
func (s *SessionService) GetDetail(ctx context.Context, userID, sessionID uuid.UUID) (*models.SessionDetail, error) {
	session, err := s.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	blocks, err := s.ListBlocks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	media, err := s.ListMedia(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.SessionDetail{Session: *session, Blocks: blocks, Media: media}, nil
}

// List returns the user's sessions ordered by creation time, newest first.
func (s *SessionService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Session, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, total, nil
}

// AppendBlock adds a client-authored block to an open session.
func (s *SessionService) AppendBlock(ctx context.Context, userID, sessionID uuid.UUID, blockType models.BlockType, textContent, mediaURL string, metadata map[string]any) (*models.SessionBlock, error) {
	if !models.ValidBlockType(blockType) {
		return nil, NewValidationError("block_type", "must be one of: text, voice, image, marker")
	}

	session, err := s.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusOpen {
		return nil, ErrSessionNotOpen
	}

	return s.insertBlock(ctx, sessionID, blockType, textContent, mediaURL, metadata)
}

func (s *SessionService) insertBlock(ctx context.Context, sessionID uuid.UUID, blockType models.BlockType, textContent, mediaURL string, metadata map[string]any) (*models.SessionBlock, error) {
	var b models.SessionBlock
	err := s.pool.QueryRow(ctx, `
		INSERT INTO session_blocks (session_id, block_type, text_content, media_url, metadata)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id, session_id, block_type, text_content, media_url, metadata, created_at`,
		sessionID, blockType, textContent, mediaURL, metadata,
	).Scan(&b.ID, &b.SessionID, &b.BlockType, &b.TextContent, &b.MediaURL, &b.Metadata, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert block: %w", err)
	}
	return &b, nil
}

// ListBlocks returns all blocks of a session in creation order.
func (s *SessionService) ListBlocks(ctx context.Context, sessionID uuid.UUID) ([]models.SessionBlock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, block_type, text_content, media_url, metadata, created_at
		FROM session_blocks
		WHERE session_id = $1
		ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.SessionBlock
	for rows.Next() {
		var b models.SessionBlock
		if err := rows.Scan(&b.ID, &b.SessionID, &b.BlockType, &b.TextContent,
			&b.MediaURL, &b.Metadata, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blocks: %w", err)
	}
	return blocks, nil
}

// ListMedia returns all media files of a session in creation order.
func (s *SessionService) ListMedia(ctx context.Context, sessionID uuid.UUID) ([]models.MediaFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, media_type, object_key, content_type, size_bytes, status, created_at
		FROM media_files
		WHERE session_id = $1
		ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read media files: %w", err)
	}
	return media, nil
}

// Delete removes a session and, best-effort, its storage objects.
// Database rows cascade; object deletion failures are logged, not returned.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if s.store != nil {
		prefix := fmt.Sprintf("sessions/%s/", sessionID)
		if err := s.store.DeleteSessionObjects(ctx, prefix); err != nil {
			slog.Warn("Failed to delete session objects from storage",
				"session_id", sessionID, "error", err)
		}
	}
	return nil
}

// FinalizeResult reports the outcome of a finalize call.
type FinalizeResult struct {
	Session          *models.Session `json:"session"`
	Job              *models.AIJob   `json:"job,omitempty"`
	Charged          bool            `json:"charged"`
	RemainingCredits int             `json:"remaining_credits"`
}

// Finalize closes an open session and, when the user has a credit, debits
// one and enqueues the processing job. Debit, job insert, and status change
// commit in a single transaction: either all happen or none do.
//
// With no credits the session is preserved as no_credits: no job, no debit.
// A session without any blocks cannot be finalized at all.
func (s *SessionService) Finalize(ctx context.Context, userID, sessionID uuid.UUID) (*FinalizeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the session row so concurrent finalize calls serialize.
	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		sessionID, userID)
	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusOpen {
		return nil, ErrAlreadyFinalized
	}

	// Empty sessions are rejected before any debit happens.
	var hasBlocks bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_blocks WHERE session_id = $1)`,
		sessionID).Scan(&hasBlocks); err != nil {
		return nil, fmt.Errorf("failed to check session blocks: %w", err)
	}
	if !hasBlocks {
		return nil, ErrSessionEmpty
	}

	now := time.Now()

	debitErr := s.credits.DebitTx(ctx, tx, userID, 1)
	if debitErr != nil {
		if !errors.Is(debitErr, ErrInsufficientCredits) {
			return nil, debitErr
		}

		// Preserve the session without AI enrichment.
		row = tx.QueryRow(ctx, `
			UPDATE sessions SET status = $1, finalized_at = $2, updated_at = $2
			WHERE id = $3
			RETURNING `+sessionColumns,
			models.SessionStatusNoCredits, now, sessionID)
		session, err = scanSession(row)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit finalize: %w", err)
		}

		slog.Info("Session finalized without credits",
			"session_id", sessionID, "user_id", userID)
		return &FinalizeResult{Session: session, Charged: false}, nil
	}

	var job models.AIJob
	err = tx.QueryRow(ctx, `
		INSERT INTO ai_jobs (user_id, session_id, job_type, credits_used)
		VALUES ($1, $2, $3, 1)
		RETURNING id, user_id, session_id, job_type, credits_used, status, created_at`,
		userID, sessionID, models.JobTypeProcessSession,
	).Scan(&job.ID, &job.UserID, &job.SessionID, &job.JobType, &job.CreditsUsed,
		&job.Status, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	row = tx.QueryRow(ctx, `
		UPDATE sessions SET status = $1, finalized_at = $2, updated_at = $2
		WHERE id = $3
		RETURNING `+sessionColumns,
		models.SessionStatusPendingProcessing, now, sessionID)
	session, err = scanSession(row)
	if err != nil {
		return nil, err
	}

	var remaining int
	if err := tx.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1`, userID).Scan(&remaining); err != nil {
		return nil, fmt.Errorf("failed to read remaining credits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit finalize: %w", err)
	}

	slog.Info("Session finalized",
		"session_id", sessionID, "user_id", userID,
		"job_id", job.ID, "remaining_credits", remaining)
	return &FinalizeResult{Session: session, Job: &job, Charged: true, RemainingCredits: remaining}, nil
}

// Reprocess enqueues a fresh zero-cost job for an already-finalized session.
// Each call appends a new job; duplicates are allowed and run in order.
func (s *SessionService) Reprocess(ctx context.Context, userID, sessionID uuid.UUID) (*models.AIJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		sessionID, userID)
	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionStatusProcessed, models.SessionStatusFailed:
	default:
		return nil, NewValidationError("status", "only processed or failed sessions can be reprocessed")
	}

	var job models.AIJob
	err = tx.QueryRow(ctx, `
		INSERT INTO ai_jobs (user_id, session_id, job_type, credits_used)
		VALUES ($1, $2, $3, 0)
		RETURNING id, user_id, session_id, job_type, credits_used, status, created_at`,
		userID, sessionID, models.JobTypeProcessSession,
	).Scan(&job.ID, &job.UserID, &job.SessionID, &job.JobType, &job.CreditsUsed,
		&job.Status, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue reprocess job: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET status = $1, updated_at = now() WHERE id = $2`,
		models.SessionStatusPendingProcessing, sessionID); err != nil {
		return nil, fmt.Errorf("failed to reset session status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reprocess: %w", err)
	}
	return &job, nil
}

// ── Pipeline-facing operations (no ownership check: workers act on behalf
// of the system, not a request principal). ──

// GetForProcessing fetches a session by ID for the pipeline.
func (s *SessionService) GetForProcessing(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

// MarkProcessing transitions a session into processing.
func (s *SessionService) MarkProcessing(ctx context.Context, sessionID uuid.UUID) error {
	return s.setStatus(ctx, sessionID, models.SessionStatusProcessing, false)
}

// MarkProcessed transitions a session into processed and stamps processed_at.
func (s *SessionService) MarkProcessed(ctx context.Context, sessionID uuid.UUID) error {
	return s.setStatus(ctx, sessionID, models.SessionStatusProcessed, true)
}

// MarkFailed transitions a session into failed.
func (s *SessionService) MarkFailed(ctx context.Context, sessionID uuid.UUID) error {
	return s.setStatus(ctx, sessionID, models.SessionStatusFailed, false)
}

func (s *SessionService) setStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, stampProcessed bool) error {
	query := `UPDATE sessions SET status = $1, updated_at = now() WHERE id = $2`
	if stampProcessed {
		query = `UPDATE sessions SET status = $1, updated_at = now(), processed_at = now() WHERE id = $2`
	}
	tag, err := s.pool.Exec(ctx, query, status, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendGeneratedBlock appends a pipeline-produced block (transcription or
// image description) regardless of session status.
func (s *SessionService) AppendGeneratedBlock(ctx context.Context, sessionID uuid.UUID, blockType models.BlockType, textContent string, metadata map[string]any) (*models.SessionBlock, error) {
	return s.insertBlock(ctx, sessionID, blockType, textContent, "", metadata)
}

// SetSummary stores the generated (or failure-marker) summary.
func (s *SessionService) SetSummary(ctx context.Context, sessionID uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ai_summary = $1, updated_at = now() WHERE id = $2`,
		summary, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}

// SetTitle stores the suggested title.
func (s *SessionService) SetTitle(ctx context.Context, sessionID uuid.UUID, title string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET suggested_title = $1, updated_at = now() WHERE id = $2`,
		title, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	return nil
}

// ProcessedSessionIDs returns the IDs of the user's sessions eligible for
// semantic search.
func (s *SessionService) ProcessedSessionIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM sessions WHERE user_id = $1 AND status = $2`,
		userID, models.SessionStatusProcessed)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
