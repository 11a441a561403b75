package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an AI processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job type constants.
const (
	JobTypeProcessSession = "process_session"
)

// AIJob is a queued unit of pipeline work. The ai_jobs table doubles as the
// job broker: workers claim pending rows with FOR UPDATE SKIP LOCKED.
type AIJob struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	SessionID        uuid.UUID  `json:"session_id"`
	JobType          string     `json:"job_type"`
	CreditsUsed      int        `json:"credits_used"`
	Status           JobStatus  `json:"status"`
	PodID            *string    `json:"pod_id,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	RecoveryAttempts int        `json:"recovery_attempts"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	LastHeartbeatAt  *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
