package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/models"
	testdb "github.com/memora-app/memora/test/database"
)

func retentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		PendingMediaTTL:   24 * time.Hour,
		PendingPaymentTTL: 24 * time.Hour,
		SweepInterval:     1 * time.Hour,
	}
}

func createUserAndSession(t *testing.T, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	var userID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO users (firebase_uid, credits) VALUES ($1, 10) RETURNING id`,
		uuid.NewString()).Scan(&userID)
	require.NoError(t, err)

	var sessionID uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id) VALUES ($1) RETURNING id`,
		userID).Scan(&sessionID)
	require.NoError(t, err)

	return userID, sessionID
}

func insertMedia(t *testing.T, pool *pgxpool.Pool, sessionID uuid.UUID, status models.MediaStatus, age time.Duration) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO media_files (session_id, media_type, object_key, content_type, status, created_at)
		VALUES ($1, 'audio', $2, 'audio/m4a', $3, $4)
		RETURNING id`,
		sessionID, "sessions/"+sessionID.String()+"/"+uuid.NewString(),
		status, time.Now().Add(-age)).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertPayment(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, status models.PaymentStatus, age time.Duration) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO payments (user_id, stripe_checkout_session_id, credits_amount, status, created_at)
		VALUES ($1, $2, 50, $3, $4)
		RETURNING id`,
		userID, "cs_"+uuid.NewString(), status, time.Now().Add(-age)).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestService_RemovesAbandonedMedia(t *testing.T) {
	pool := testdb.NewTestPool(t)
	ctx := context.Background()
	_, sessionID := createUserAndSession(t, pool)

	stale := insertMedia(t, pool, sessionID, models.MediaStatusPending, 48*time.Hour)
	recent := insertMedia(t, pool, sessionID, models.MediaStatusPending, 1*time.Hour)
	uploaded := insertMedia(t, pool, sessionID, models.MediaStatusUploaded, 48*time.Hour)

	svc := NewService(retentionConfig(), pool, nil)
	svc.runAll(ctx)

	var remaining []uuid.UUID
	rows, err := pool.Query(ctx, `SELECT id FROM media_files WHERE session_id = $1`, sessionID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		require.NoError(t, rows.Scan(&id))
		remaining = append(remaining, id)
	}
	require.NoError(t, rows.Err())

	assert.NotContains(t, remaining, stale, "stale pending media should be removed")
	assert.Contains(t, remaining, recent, "recent pending media should be preserved")
	assert.Contains(t, remaining, uploaded, "uploaded media should never be swept")
}

func TestService_FailsStalePendingPayments(t *testing.T) {
	pool := testdb.NewTestPool(t)
	ctx := context.Background()
	userID, _ := createUserAndSession(t, pool)

	stale := insertPayment(t, pool, userID, models.PaymentStatusPending, 48*time.Hour)
	recent := insertPayment(t, pool, userID, models.PaymentStatusPending, 1*time.Hour)
	completed := insertPayment(t, pool, userID, models.PaymentStatusCompleted, 48*time.Hour)

	svc := NewService(retentionConfig(), pool, nil)
	svc.runAll(ctx)

	status := func(id uuid.UUID) models.PaymentStatus {
		var s models.PaymentStatus
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, id).Scan(&s))
		return s
	}

	assert.Equal(t, models.PaymentStatusFailed, status(stale))
	assert.Equal(t, models.PaymentStatusPending, status(recent))
	assert.Equal(t, models.PaymentStatusCompleted, status(completed))
}

func TestService_StartStop(t *testing.T) {
	pool := testdb.NewTestPool(t)

	cfg := retentionConfig()
	cfg.SweepInterval = time.Hour

	svc := NewService(cfg, pool, nil)
	svc.Start(context.Background())
	svc.Stop()

	// Stop is idempotent once stopped.
	svc.Stop()
}
