package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/models"
	testdb "github.com/memora-app/memora/test/database"
)

// Lifecycle tests run against a real PostgreSQL instance: the finalize
// transaction (debit + job enqueue) and ownership enforcement are the
// parts worth exercising end to end.

func setupLifecycle(t *testing.T) (*SessionService, *CreditService, *UserService) {
	t.Helper()
	pool := testdb.NewTestPool(t)
	credits := NewCreditService(pool)
	return NewSessionService(pool, credits, nil), credits, NewUserService(pool)
}

// openSessionWithBlock creates an open session holding one text block, the
// minimum a session needs to be finalizable.
func openSessionWithBlock(t *testing.T, sessions *SessionService, userID uuid.UUID) *models.Session {
	t.Helper()
	ctx := context.Background()
	session, err := sessions.Create(ctx, userID, "", "")
	require.NoError(t, err)
	_, err = sessions.AppendBlock(ctx, userID, session.ID, models.BlockTypeText, "algum conteúdo", "", nil)
	require.NoError(t, err)
	return session
}

func TestFinalize_DebitsAndEnqueues(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-finalize", "a@example.com")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 3))

	session, err := sessions.Create(ctx, user.ID, "mixed", "pt")
	require.NoError(t, err)
	_, err = sessions.AppendBlock(ctx, user.ID, session.ID, models.BlockTypeText, "some thoughts", "", nil)
	require.NoError(t, err)

	result, err := sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)

	assert.True(t, result.Charged)
	assert.Equal(t, 2, result.RemainingCredits)
	assert.Equal(t, models.SessionStatusPendingProcessing, result.Session.Status)
	require.NotNil(t, result.Job)
	assert.Equal(t, models.JobStatusPending, result.Job.Status)
	assert.Equal(t, 1, result.Job.CreditsUsed)
	assert.NotNil(t, result.Session.FinalizedAt)

	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestFinalize_NoCredits(t *testing.T) {
	sessions, _, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-broke", "")
	require.NoError(t, err)

	session := openSessionWithBlock(t, sessions, user.ID)

	result, err := sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)

	assert.False(t, result.Charged)
	assert.Nil(t, result.Job)
	assert.Equal(t, models.SessionStatusNoCredits, result.Session.Status)
}

func TestFinalize_AlreadyFinalized(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-twice", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 5))

	session := openSessionWithBlock(t, sessions, user.ID)

	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)

	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	// Only the first finalize debits.
	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
}

func TestFinalize_EmptySession(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-empty", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 2))

	session, err := sessions.Create(ctx, user.ID, "", "")
	require.NoError(t, err)

	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	assert.ErrorIs(t, err, ErrSessionEmpty)

	// Rejection happens before the debit; the session stays open.
	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	reloaded, err := sessions.GetByID(ctx, user.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusOpen, reloaded.Status)
}

func TestFinalize_ConcurrentLastCredit(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-race", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 1))

	first := openSessionWithBlock(t, sessions, user.ID)
	second := openSessionWithBlock(t, sessions, user.ID)

	results := make([]*FinalizeResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, session := range []*models.Session{first, second} {
		wg.Add(1)
		go func(i int, sessionID uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = sessions.Finalize(ctx, user.ID, sessionID)
		}(i, session.ID)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// The conditional debit serializes on the user row: exactly one
	// finalize wins the last credit and enqueues a job.
	var charged, jobs int
	for _, result := range results {
		if result.Charged {
			charged++
		}
		if result.Job != nil {
			jobs++
		}
	}
	assert.Equal(t, 1, charged)
	assert.Equal(t, 1, jobs)

	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestAppendBlock_ClosedSession(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-closed", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 1))

	session := openSessionWithBlock(t, sessions, user.ID)
	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)

	_, err = sessions.AppendBlock(ctx, user.ID, session.ID, models.BlockTypeText, "too late", "", nil)
	assert.ErrorIs(t, err, ErrSessionNotOpen)
}

func TestOwnership_OtherUsersSessionIsNotFound(t *testing.T) {
	sessions, _, users := setupLifecycle(t)
	ctx := context.Background()

	owner, err := users.GetOrCreateByFirebaseUID(ctx, "uid-owner", "")
	require.NoError(t, err)
	intruder, err := users.GetOrCreateByFirebaseUID(ctx, "uid-intruder", "")
	require.NoError(t, err)

	session, err := sessions.Create(ctx, owner.ID, "", "")
	require.NoError(t, err)

	_, err = sessions.GetByID(ctx, intruder.ID, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = sessions.Delete(ctx, intruder.ID, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReprocess_RequiresTerminalState(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-reprocess", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 1))

	session := openSessionWithBlock(t, sessions, user.ID)

	// Open sessions cannot be reprocessed.
	_, err = sessions.Reprocess(ctx, user.ID, session.ID)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)
	require.NoError(t, sessions.MarkProcessing(ctx, session.ID))
	require.NoError(t, sessions.MarkProcessed(ctx, session.ID))

	job, err := sessions.Reprocess(ctx, user.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, job.CreditsUsed)
	assert.Equal(t, models.JobStatusPending, job.Status)

	// Reprocessing is free.
	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestMarkProcessedStampsTimestamp(t *testing.T) {
	sessions, credits, users := setupLifecycle(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-stamp", "")
	require.NoError(t, err)
	require.NoError(t, credits.Grant(ctx, user.ID, 1))

	session := openSessionWithBlock(t, sessions, user.ID)
	_, err = sessions.Finalize(ctx, user.ID, session.ID)
	require.NoError(t, err)

	require.NoError(t, sessions.MarkProcessing(ctx, session.ID))
	require.NoError(t, sessions.MarkProcessed(ctx, session.ID))

	updated, err := sessions.GetForProcessing(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusProcessed, updated.Status)
	assert.NotNil(t, updated.ProcessedAt)
}
