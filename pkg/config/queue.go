package config

import "time"

// QueueConfig contains queue and worker pool configuration.
// These values control how pending AI jobs are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes jobs.
	WorkerCount int

	// MaxConcurrentJobs is the global limit of jobs being processed
	// across ALL replicas/pods. Enforced by a database COUNT(*) check.
	MaxConcurrentJobs int

	// PollInterval is the base interval for checking pending jobs.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// JobTimeout is the hard limit for one pipeline run.
	JobTimeout time.Duration

	// JobSoftTimeout is logged as a warning when exceeded; the run continues.
	JobSoftTimeout time.Duration

	// HeartbeatInterval is how often a worker refreshes last_heartbeat_at
	// on its claimed job.
	HeartbeatInterval time.Duration

	// GracefulShutdownTimeout is the max time to wait for active jobs to
	// complete during shutdown.
	GracefulShutdownTimeout time.Duration

	// OrphanDetectionInterval is how often to scan for orphaned jobs.
	OrphanDetectionInterval time.Duration

	// OrphanThreshold is how long a job can go without a heartbeat before
	// it is considered orphaned and re-queued.
	OrphanThreshold time.Duration

	// MaxRecoveryAttempts bounds how many times an orphaned job is
	// re-queued before being failed outright.
	MaxRecoveryAttempts int
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:             4,
		MaxConcurrentJobs:       8,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              30 * time.Minute,
		JobSoftTimeout:          25 * time.Minute,
		HeartbeatInterval:       15 * time.Second,
		GracefulShutdownTimeout: 30 * time.Minute,
		OrphanDetectionInterval: 1 * time.Minute,
		OrphanThreshold:         2 * time.Minute,
		MaxRecoveryAttempts:     2,
	}
}

func loadQueueConfig() QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.WorkerCount = getEnvInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", cfg.MaxConcurrentJobs)
	cfg.JobTimeout = getEnvDuration("JOB_TIMEOUT", cfg.JobTimeout)
	cfg.JobSoftTimeout = getEnvDuration("JOB_SOFT_TIMEOUT", cfg.JobSoftTimeout)
	cfg.HeartbeatInterval = getEnvDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.OrphanDetectionInterval = getEnvDuration("ORPHAN_DETECTION_INTERVAL", cfg.OrphanDetectionInterval)
	cfg.OrphanThreshold = getEnvDuration("ORPHAN_THRESHOLD", cfg.OrphanThreshold)
	return cfg
}

func loadRetentionConfig() RetentionConfig {
	return RetentionConfig{
		PendingMediaTTL:   getEnvDuration("PENDING_MEDIA_TTL", 24*time.Hour),
		PendingPaymentTTL: getEnvDuration("PENDING_PAYMENT_TTL", 24*time.Hour),
		SweepInterval:     getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour),
	}
}
