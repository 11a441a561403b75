// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/storage"
)

// Service periodically enforces retention policies:
//   - Deletes media rows stuck in "pending" past their TTL (abandoned
//     presigns that were never committed), removing the object best-effort
//   - Marks payments stuck in "pending" past their TTL as failed
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	pool   *pgxpool.Pool
	store  *storage.Gateway // nil when object storage is not configured

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, pool *pgxpool.Pool, store *storage.Gateway) *Service {
	return &Service{
		config: cfg,
		pool:   pool,
		store:  store,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"pending_media_ttl", s.config.PendingMediaTTL,
		"pending_payment_ttl", s.config.PendingPaymentTTL,
		"interval", s.config.SweepInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.sweepAbandonedMedia(ctx)
	s.sweepStalePayments(ctx)
}

// sweepAbandonedMedia removes pending media rows older than the TTL.
// Rows are deleted first; object removal is best-effort since an
// uncommitted upload may or may not have reached the bucket.
func (s *Service) sweepAbandonedMedia(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.PendingMediaTTL)

	rows, err := s.pool.Query(ctx, `
		DELETE FROM media_files
		WHERE status = $1 AND created_at < $2
		RETURNING object_key`,
		models.MediaStatusPending, cutoff)
	if err != nil {
		slog.Error("Retention: abandoned media sweep failed", "error", err)
		return
	}

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			slog.Error("Retention: abandoned media scan failed", "error", err)
			return
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Error("Retention: abandoned media sweep failed", "error", err)
		return
	}

	if s.store != nil {
		for _, key := range keys {
			if err := s.store.Delete(ctx, key); err != nil {
				slog.Warn("Retention: failed to delete abandoned object",
					"object_key", key, "error", err)
			}
		}
	}

	if len(keys) > 0 {
		slog.Info("Retention: removed abandoned media", "count", len(keys))
	}
}

// sweepStalePayments fails payments that never completed checkout.
// Failed is not terminal: a late success webhook still completes a swept
// row and grants its credits exactly once.
func (s *Service) sweepStalePayments(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.PendingPaymentTTL)

	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET status = $1
		WHERE status = $2 AND created_at < $3`,
		models.PaymentStatusFailed, models.PaymentStatusPending, cutoff)
	if err != nil {
		slog.Error("Retention: stale payment sweep failed", "error", err)
		return
	}
	if tag.RowsAffected() > 0 {
		slog.Info("Retention: marked stale payments failed", "count", tag.RowsAffected())
	}
}
