// Package queue provides the database-backed job queue and its worker pool.
//
// Jobs live in the ai_jobs table; workers claim them with
// FOR UPDATE SKIP LOCKED, so any number of pods can poll the same queue
// without double-processing. Delivery is at-least-once: executors must be
// idempotent.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/memora-app/memora/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no pending jobs are in the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent job limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// JobExecutor processes one claimed job end to end.
//
// The executor owns the session-side state: it writes blocks, summary,
// title, embeddings, and the session status progressively during the run.
// The worker only handles claiming, heartbeat, and the job's terminal
// status update.
type JobExecutor interface {
	Execute(ctx context.Context, job *models.AIJob) *ExecutionResult
}

// ExecutionResult is just the job's terminal state; all session-side output
// was already written by the executor during processing.
type ExecutionResult struct {
	Status models.JobStatus // completed or failed
	Error  error            // error details when failed
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
