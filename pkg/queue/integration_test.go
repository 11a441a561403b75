package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/models"
	testdb "github.com/memora-app/memora/test/database"
)

type recordingExecutor struct {
	jobs   []uuid.UUID
	result *ExecutionResult
}

func (e *recordingExecutor) Execute(ctx context.Context, job *models.AIJob) *ExecutionResult {
	e.jobs = append(e.jobs, job.ID)
	return e.result
}

func seedJob(t *testing.T, pool *pgxpool.Pool) (userID, sessionID, jobID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	err := pool.QueryRow(ctx, `
		INSERT INTO users (firebase_uid, credits) VALUES ($1, 10) RETURNING id`,
		uuid.NewString()).Scan(&userID)
	require.NoError(t, err)

	err = pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, status) VALUES ($1, 'pending_processing') RETURNING id`,
		userID).Scan(&sessionID)
	require.NoError(t, err)

	err = pool.QueryRow(ctx, `
		INSERT INTO ai_jobs (user_id, session_id, credits_used) VALUES ($1, $2, 1) RETURNING id`,
		userID, sessionID).Scan(&jobID)
	require.NoError(t, err)
	return
}

func jobState(t *testing.T, pool *pgxpool.Pool, jobID uuid.UUID) (models.JobStatus, int) {
	t.Helper()
	var status models.JobStatus
	var attempts int
	err := pool.QueryRow(context.Background(),
		`SELECT status, recovery_attempts FROM ai_jobs WHERE id = $1`, jobID).
		Scan(&status, &attempts)
	require.NoError(t, err)
	return status, attempts
}

func TestWorkerClaimsAndCompletesJob(t *testing.T) {
	pool := testdb.NewTestPool(t)
	_, _, jobID := seedJob(t, pool)

	executor := &recordingExecutor{result: &ExecutionResult{Status: models.JobStatusCompleted}}
	worker := NewWorker("w-1", "test-pod", pool, testQueueConfig(), executor)

	require.NoError(t, worker.pollAndProcess(context.Background()))

	assert.Equal(t, []uuid.UUID{jobID}, executor.jobs)
	status, _ := jobState(t, pool, jobID)
	assert.Equal(t, models.JobStatusCompleted, status)
}

func TestWorkerNoJobsAvailable(t *testing.T) {
	pool := testdb.NewTestPool(t)

	executor := &recordingExecutor{result: &ExecutionResult{Status: models.JobStatusCompleted}}
	worker := NewWorker("w-1", "test-pod", pool, testQueueConfig(), executor)

	err := worker.pollAndProcess(context.Background())
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
	assert.Empty(t, executor.jobs)
}

func TestWorkerRecordsExecutorFailure(t *testing.T) {
	pool := testdb.NewTestPool(t)
	_, _, jobID := seedJob(t, pool)

	executor := &recordingExecutor{result: &ExecutionResult{
		Status: models.JobStatusFailed,
		Error:  assert.AnError,
	}}
	worker := NewWorker("w-1", "test-pod", pool, testQueueConfig(), executor)

	require.NoError(t, worker.pollAndProcess(context.Background()))

	var status models.JobStatus
	var errMsg *string
	err := pool.QueryRow(context.Background(),
		`SELECT status, error_message FROM ai_jobs WHERE id = $1`, jobID).
		Scan(&status, &errMsg)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status)
	require.NotNil(t, errMsg)
	assert.Contains(t, *errMsg, assert.AnError.Error())
}

func TestOrphanRecoveryRequeuesStaleJob(t *testing.T) {
	pool := testdb.NewTestPool(t)
	ctx := context.Background()
	_, _, jobID := seedJob(t, pool)

	// Simulate a crashed pod: processing with an old heartbeat.
	_, err := pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = 'processing', pod_id = 'dead-pod',
		    started_at = now() - interval '10 minutes',
		    last_heartbeat_at = now() - interval '10 minutes'
		WHERE id = $1`, jobID)
	require.NoError(t, err)

	cfg := testQueueConfig()
	requeued, err := requeueOrphans(ctx, pool, cfg, `
		status = $2 AND last_heartbeat_at IS NOT NULL AND last_heartbeat_at < $3`,
		time.Now().Add(-cfg.OrphanThreshold))
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	status, attempts := jobState(t, pool, jobID)
	assert.Equal(t, models.JobStatusPending, status)
	assert.Equal(t, 1, attempts)
}

func TestOrphanRecoveryExhaustedFailsJobAndSession(t *testing.T) {
	pool := testdb.NewTestPool(t)
	ctx := context.Background()
	_, sessionID, jobID := seedJob(t, pool)

	cfg := testQueueConfig()
	_, err := pool.Exec(ctx, `
		UPDATE ai_jobs
		SET status = 'processing', pod_id = 'dead-pod',
		    last_heartbeat_at = now() - interval '10 minutes',
		    recovery_attempts = $1
		WHERE id = $2`, cfg.MaxRecoveryAttempts, jobID)
	require.NoError(t, err)

	requeued, err := requeueOrphans(ctx, pool, cfg, `
		status = $2 AND last_heartbeat_at IS NOT NULL AND last_heartbeat_at < $3`,
		time.Now().Add(-cfg.OrphanThreshold))
	require.NoError(t, err)
	assert.Zero(t, requeued)

	status, _ := jobState(t, pool, jobID)
	assert.Equal(t, models.JobStatusFailed, status)

	var sessionStatus models.SessionStatus
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status FROM sessions WHERE id = $1`, sessionID).Scan(&sessionStatus))
	assert.Equal(t, models.SessionStatusFailed, sessionStatus)
}

func TestCleanupStartupOrphansByPod(t *testing.T) {
	pool := testdb.NewTestPool(t)
	ctx := context.Background()
	_, _, mine := seedJob(t, pool)
	_, _, other := seedJob(t, pool)

	for jobID, pod := range map[uuid.UUID]string{mine: "pod-a", other: "pod-b"} {
		_, err := pool.Exec(ctx, `
			UPDATE ai_jobs SET status = 'processing', pod_id = $1, last_heartbeat_at = now()
			WHERE id = $2`, pod, jobID)
		require.NoError(t, err)
	}

	require.NoError(t, CleanupStartupOrphans(ctx, pool, testQueueConfig(), "pod-a"))

	mineStatus, _ := jobState(t, pool, mine)
	otherStatus, _ := jobState(t, pool, other)
	assert.Equal(t, models.JobStatusPending, mineStatus, "own pod's orphan is re-queued")
	assert.Equal(t, models.JobStatusProcessing, otherStatus, "other pods' jobs are untouched")
}
