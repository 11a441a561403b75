package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/metrics"
	"github.com/memora-app/memora/pkg/models"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned jobs.
// All pods run this independently — operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds processing jobs with stale heartbeats and
// re-queues them. A job that has already been recovered MaxRecoveryAttempts
// times is marked failed instead; its work is presumed poisonous.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	requeued, err := requeueOrphans(ctx, p.pool, p.config, `
		status = $2 AND last_heartbeat_at IS NOT NULL AND last_heartbeat_at < $3`,
		threshold)
	if err != nil {
		return err
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += requeued
	p.orphans.mu.Unlock()

	if requeued > 0 {
		metrics.OrphansRecovered.Add(float64(requeued))
	}
	return nil
}

// requeueOrphans re-pends orphaned processing jobs matching the condition
// and fails the ones out of recovery budget. $1 is always the recovery
// limit, $2 the processing status; extra args start at $3.
func requeueOrphans(ctx context.Context, pool *pgxpool.Pool, cfg *config.QueueConfig, condition string, args ...any) (int, error) {
	queryArgs := append([]any{cfg.MaxRecoveryAttempts, models.JobStatusProcessing}, args...)

	rows, err := pool.Query(ctx, `
		UPDATE ai_jobs
		SET status = 'pending', pod_id = NULL, started_at = NULL,
		    last_heartbeat_at = NULL, recovery_attempts = recovery_attempts + 1
		WHERE recovery_attempts < $1 AND `+condition+`
		RETURNING id, session_id`,
		queryArgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue orphaned jobs: %w", err)
	}
	requeued := 0
	for rows.Next() {
		var jobID, sessionID string
		if err := rows.Scan(&jobID, &sessionID); err != nil {
			rows.Close()
			return requeued, fmt.Errorf("failed to scan requeued job: %w", err)
		}
		slog.Warn("Orphaned job re-queued", "job_id", jobID, "session_id", sessionID)
		requeued++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return requeued, fmt.Errorf("failed to read requeued jobs: %w", err)
	}

	// Out of budget: terminal failure for both job and session.
	failRows, err := pool.Query(ctx, `
		UPDATE ai_jobs
		SET status = 'failed', completed_at = now(),
		    error_message = 'Orphaned: exceeded recovery attempts'
		WHERE recovery_attempts >= $1 AND `+condition+`
		RETURNING session_id`,
		queryArgs...)
	if err != nil {
		return requeued, fmt.Errorf("failed to fail orphaned jobs: %w", err)
	}
	var failedSessions []string
	for failRows.Next() {
		var sessionID string
		if err := failRows.Scan(&sessionID); err != nil {
			failRows.Close()
			return requeued, fmt.Errorf("failed to scan failed job: %w", err)
		}
		failedSessions = append(failedSessions, sessionID)
	}
	failRows.Close()
	if err := failRows.Err(); err != nil {
		return requeued, fmt.Errorf("failed to read failed jobs: %w", err)
	}

	for _, sessionID := range failedSessions {
		if _, err := pool.Exec(ctx, `
			UPDATE sessions SET status = $1, updated_at = now() WHERE id = $2`,
			models.SessionStatusFailed, sessionID); err != nil {
			slog.Error("Failed to mark session failed after orphan exhaustion",
				"session_id", sessionID, "error", err)
			continue
		}
		slog.Warn("Orphaned job exhausted recovery attempts", "session_id", sessionID)
	}

	return requeued, nil
}

// CleanupStartupOrphans re-queues jobs this pod was processing when it
// previously crashed. Called once during startup, before the worker pool
// begins processing.
func CleanupStartupOrphans(ctx context.Context, pool *pgxpool.Pool, cfg *config.QueueConfig, podID string) error {
	requeued, err := requeueOrphans(ctx, pool, cfg, `status = $2 AND pod_id = $3`, podID)
	if err != nil {
		return fmt.Errorf("failed to clean up startup orphans: %w", err)
	}
	if requeued > 0 {
		slog.Warn("Re-queued startup orphans from previous run",
			"pod_id", podID, "count", requeued)
	}
	return nil
}
