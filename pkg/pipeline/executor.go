// Package pipeline implements the session processing pipeline: audio
// transcription, image description, summarization, title suggestion, and
// embedding generation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memora-app/memora/pkg/ai"
	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/embedding"
	"github.com/memora-app/memora/pkg/metrics"
	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/notify"
	"github.com/memora-app/memora/pkg/queue"
)

// EmbedBatchSize is how many chunks are embedded and committed per batch,
// so a provider failure mid-session keeps earlier batches.
const EmbedBatchSize = 10

// SessionStore is the session-side persistence the pipeline writes through.
type SessionStore interface {
	GetForProcessing(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	MarkProcessing(ctx context.Context, sessionID uuid.UUID) error
	MarkProcessed(ctx context.Context, sessionID uuid.UUID) error
	MarkFailed(ctx context.Context, sessionID uuid.UUID) error
	ListBlocks(ctx context.Context, sessionID uuid.UUID) ([]models.SessionBlock, error)
	AppendGeneratedBlock(ctx context.Context, sessionID uuid.UUID, blockType models.BlockType, textContent string, metadata map[string]any) (*models.SessionBlock, error)
	SetSummary(ctx context.Context, sessionID uuid.UUID, summary string) error
	SetTitle(ctx context.Context, sessionID uuid.UUID, title string) error
}

// MediaStore lists a session's committed uploads.
type MediaStore interface {
	UploadedMedia(ctx context.Context, sessionID uuid.UUID, mediaType models.MediaType) ([]models.MediaFile, error)
}

// VectorStore persists chunk embeddings.
type VectorStore interface {
	InsertBatch(ctx context.Context, sessionID uuid.UUID, provider string, chunks []string, vectors [][]float32) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

// ObjectStore fetches media bytes and mints download URLs for vision calls.
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
	PresignDownload(ctx context.Context, objectKey string) (string, error)
}

// AI is the provider surface the pipeline needs.
type AI interface {
	CanTranscribe() bool
	CanDescribeImages() bool
	CanEmbed() bool
	EmbeddingProvider() string
	Transcribe(ctx context.Context, req ai.TranscriptionRequest) (string, error)
	DescribeImage(ctx context.Context, req ai.ImageRequest) (string, error)
	Summarize(ctx context.Context, lang string, blockTexts []string) (string, error)
	SuggestTitle(ctx context.Context, lang, text string) (string, error)
	Embed(ctx context.Context, chunks []string) ([][]float32, error)
}

// UserStore resolves job owners for notification delivery.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Executor processes one job end to end. It implements queue.JobExecutor.
//
// Media enrichment is per-file best-effort: one failed transcription or
// description never fails the whole session. Summary failure stores a
// localized failure marker; title failure falls back to a text-derived
// title. The session still reaches processed in all those cases.
type Executor struct {
	sessions SessionStore
	media    MediaStore
	vectors  VectorStore
	store    ObjectStore // nil when object storage is not configured
	ai       AI
	users    UserStore
	notifier *notify.Notifier
	cfg      *config.QueueConfig
}

// NewExecutor wires the pipeline. store and notifier may be nil.
func NewExecutor(sessions SessionStore, media MediaStore, vectors VectorStore, store ObjectStore, aiRouter AI, users UserStore, notifier *notify.Notifier, cfg *config.QueueConfig) *Executor {
	return &Executor{
		sessions: sessions,
		media:    media,
		vectors:  vectors,
		store:    store,
		ai:       aiRouter,
		users:    users,
		notifier: notifier,
		cfg:      cfg,
	}
}

var _ queue.JobExecutor = (*Executor)(nil)

// Execute runs the full pipeline for one claimed job.
func (e *Executor) Execute(ctx context.Context, job *models.AIJob) *queue.ExecutionResult {
	log := slog.With("job_id", job.ID, "session_id", job.SessionID)

	session, err := e.sessions.GetForProcessing(ctx, job.SessionID)
	if err != nil {
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to load session: %w", err),
		}
	}

	if err := e.sessions.MarkProcessing(ctx, session.ID); err != nil {
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to mark session processing: %w", err),
		}
	}

	lang := e.languageFor(ctx, session, job.UserID)

	// The AI stages run under the soft timeout, leaving headroom inside the
	// job timeout for terminal writes.
	stageCtx := ctx
	var cancel context.CancelFunc
	if e.cfg != nil && e.cfg.JobSoftTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, e.cfg.JobSoftTimeout)
		defer cancel()
	}

	e.transcribeAudio(stageCtx, session, lang, log)
	e.describeImages(stageCtx, session, lang, log)

	blocks, err := e.sessions.ListBlocks(ctx, session.ID)
	if err != nil {
		e.failSession(session.ID, log)
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to list blocks: %w", err),
		}
	}
	texts := blockTexts(blocks)

	e.embedChunks(stageCtx, session.ID, texts, log)

	summary, err := e.ai.Summarize(stageCtx, lang, texts)
	if err != nil {
		log.Warn("Summary generation failed", "error", err)
		summary = ai.SummaryFailureMessage(lang, err)
	}
	if err := e.sessions.SetSummary(ctx, session.ID, summary); err != nil {
		e.failSession(session.ID, log)
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to store summary: %w", err),
		}
	}

	combined := strings.Join(texts, "\n\n")
	title, err := e.ai.SuggestTitle(stageCtx, lang, combined)
	if err != nil || strings.TrimSpace(title) == "" {
		if err != nil {
			log.Warn("Title suggestion failed", "error", err)
		}
		title = ai.FallbackTitle(lang, combined)
	}
	if err := e.sessions.SetTitle(ctx, session.ID, title); err != nil {
		e.failSession(session.ID, log)
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to store title: %w", err),
		}
	}

	if err := e.sessions.MarkProcessed(ctx, session.ID); err != nil {
		return &queue.ExecutionResult{
			Status: models.JobStatusFailed,
			Error:  fmt.Errorf("failed to mark session processed: %w", err),
		}
	}

	e.notifyReady(ctx, session.ID, job.UserID, log)

	return &queue.ExecutionResult{Status: models.JobStatusCompleted}
}

// languageFor picks the working language: session language first, then the
// owner's UI preference, then Portuguese.
func (e *Executor) languageFor(ctx context.Context, session *models.Session, userID uuid.UUID) string {
	if session.Language != "" {
		return session.Language
	}
	if e.users != nil {
		if user, err := e.users.GetByID(ctx, userID); err == nil && user.PreferredLanguage != "" {
			return user.PreferredLanguage
		}
	}
	return "pt"
}

// transcribeAudio converts every uploaded audio file into a transcription
// block. Per-file failures are logged and skipped.
func (e *Executor) transcribeAudio(ctx context.Context, session *models.Session, lang string, log *slog.Logger) {
	if e.store == nil || !e.ai.CanTranscribe() {
		return
	}

	files, err := e.media.UploadedMedia(ctx, session.ID, models.MediaTypeAudio)
	if err != nil {
		log.Warn("Failed to list audio files", "error", err)
		return
	}

	for _, file := range files {
		if ctx.Err() != nil {
			return
		}
		data, err := e.store.Download(ctx, file.ObjectKey)
		if err != nil {
			log.Warn("Failed to download audio", "media_id", file.ID, "error", err)
			continue
		}

		// Mobile clients may upload raw PCM with a wav content type; give
		// it the RIFF header transcription backends expect.
		if strings.EqualFold(file.ContentType, "audio/wav") && !ai.HasWAVHeader(data) {
			wrapped, err := ai.WrapPCM(data)
			if err != nil {
				log.Warn("Failed to wrap PCM audio", "media_id", file.ID, "error", err)
				continue
			}
			data = wrapped
		}

		text, err := e.ai.Transcribe(ctx, ai.TranscriptionRequest{
			Filename: path.Base(file.ObjectKey),
			Data:     data,
			Language: lang,
		})
		if err != nil {
			log.Warn("Transcription failed", "media_id", file.ID, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if _, err := e.sessions.AppendGeneratedBlock(ctx, session.ID,
			models.BlockTypeTranscription, text,
			map[string]any{"media_id": file.ID.String()}); err != nil {
			log.Warn("Failed to store transcription block", "media_id", file.ID, "error", err)
		}
	}
}

// describeImages turns every uploaded image into a description block.
// Per-file failures are logged and skipped.
func (e *Executor) describeImages(ctx context.Context, session *models.Session, lang string, log *slog.Logger) {
	if e.store == nil || !e.ai.CanDescribeImages() {
		return
	}

	files, err := e.media.UploadedMedia(ctx, session.ID, models.MediaTypeImage)
	if err != nil {
		log.Warn("Failed to list image files", "error", err)
		return
	}

	for _, file := range files {
		if ctx.Err() != nil {
			return
		}

		desc, err := e.describeImage(ctx, file, lang, log)
		if err != nil {
			log.Warn("Image description failed", "media_id", file.ID, "error", err)
			continue
		}
		if strings.TrimSpace(desc) == "" {
			continue
		}

		if _, err := e.sessions.AppendGeneratedBlock(ctx, session.ID,
			models.BlockTypeImageDescription, desc,
			map[string]any{"media_id": file.ID.String()}); err != nil {
			log.Warn("Failed to store image description block", "media_id", file.ID, "error", err)
		}
	}
}

// describeImage calls the vision provider with a presigned URL first. When
// presigning fails, or the provider cannot fetch the URL, the bytes are
// downloaded and sent inline before giving up on the file.
func (e *Executor) describeImage(ctx context.Context, file models.MediaFile, lang string, log *slog.Logger) (string, error) {
	url, presignErr := e.store.PresignDownload(ctx, file.ObjectKey)
	if presignErr == nil {
		desc, err := e.ai.DescribeImage(ctx, ai.ImageRequest{URL: url, Language: lang})
		if err == nil {
			return desc, nil
		}
		log.Warn("Image description by URL failed, retrying with inline bytes",
			"media_id", file.ID, "error", err)
	} else {
		log.Warn("Failed to presign image download, sending bytes inline",
			"media_id", file.ID, "error", presignErr)
	}

	data, err := e.store.Download(ctx, file.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	return e.ai.DescribeImage(ctx, ai.ImageRequest{
		Data:        data,
		ContentType: file.ContentType,
		Language:    lang,
	})
}

// embedChunks chunks the session text and stores embeddings batch by batch.
// Any failure aborts the remaining batches but keeps the ones committed.
// Previous vectors are cleared first so reprocessing never duplicates.
func (e *Executor) embedChunks(ctx context.Context, sessionID uuid.UUID, texts []string, log *slog.Logger) {
	if !e.ai.CanEmbed() || e.vectors == nil {
		return
	}

	combined := strings.TrimSpace(strings.Join(texts, "\n\n"))
	if combined == "" {
		return
	}

	if err := e.vectors.DeleteBySession(ctx, sessionID); err != nil {
		log.Warn("Failed to clear previous embeddings", "error", err)
		return
	}

	chunks := embedding.ChunkText(combined, embedding.DefaultChunkSize, embedding.DefaultOverlap)
	if len(chunks) > embedding.MaxChunksPerSession {
		log.Warn("Session text exceeds embedding cap, dropping overflow chunks",
			"chunks", len(chunks), "cap", embedding.MaxChunksPerSession)
		chunks = chunks[:embedding.MaxChunksPerSession]
	}
	provider := e.ai.EmbeddingProvider()

	for start := 0; start < len(chunks); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := e.ai.Embed(ctx, batch)
		if err != nil {
			log.Warn("Embedding batch failed, keeping earlier batches",
				"batch_start", start, "error", err)
			return
		}
		if err := e.vectors.InsertBatch(ctx, sessionID, provider, batch, vectors); err != nil {
			log.Warn("Failed to store embedding batch", "batch_start", start, "error", err)
			return
		}
		metrics.EmbeddingChunks.Add(float64(len(batch)))
	}
}

// failSession writes the failed status on a fresh context: the job context
// may already be cancelled when this runs.
func (e *Executor) failSession(sessionID uuid.UUID, log *slog.Logger) {
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.sessions.MarkFailed(failCtx, sessionID); err != nil {
		log.Error("Failed to mark session failed", "error", err)
	}
}

// notifyReady sends the session-ready push. Best-effort.
func (e *Executor) notifyReady(ctx context.Context, sessionID, userID uuid.UUID, log *slog.Logger) {
	if e.notifier == nil || e.users == nil {
		return
	}
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn("Failed to load user for notification", "error", err)
		return
	}
	session, err := e.sessions.GetForProcessing(ctx, sessionID)
	if err != nil {
		log.Warn("Failed to reload session for notification", "error", err)
		return
	}
	e.notifier.SessionReady(ctx, user, session)
}

// blockTexts extracts the text content of all text-bearing blocks in order.
func blockTexts(blocks []models.SessionBlock) []string {
	var texts []string
	for _, b := range blocks {
		if b.TextContent == nil {
			continue
		}
		text := strings.TrimSpace(*b.TextContent)
		if text == "" {
			continue
		}
		switch b.BlockType {
		case models.BlockTypeText, models.BlockTypeVoice,
			models.BlockTypeTranscription, models.BlockTypeImageDescription:
			texts = append(texts, text)
		}
	}
	return texts
}
