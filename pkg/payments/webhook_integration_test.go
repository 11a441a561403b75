package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/services"
	testdb "github.com/memora-app/memora/test/database"
)

// Reconciliation tests run against a real PostgreSQL instance: the
// row-locked complete transaction is the part worth exercising end to end.
// Events are built directly; no Stripe API call is involved.

func setupWebhook(t *testing.T) (*Service, *services.UserService, *services.CreditService) {
	t.Helper()
	pool := testdb.NewTestPool(t)
	users := services.NewUserService(pool)
	credits := services.NewCreditService(pool)
	return &Service{pool: pool, users: users, credits: credits}, users, credits
}

func insertCheckoutPayment(t *testing.T, svc *Service, userID uuid.UUID, checkoutID string, creditsAmount int) uuid.UUID {
	t.Helper()
	var paymentID uuid.UUID
	err := svc.pool.QueryRow(context.Background(), `
		INSERT INTO payments (user_id, stripe_checkout_session_id, amount_cents, currency, credits_amount, package_id)
		VALUES ($1, $2, 990, 'brl', $3, 'starter')
		RETURNING id`,
		userID, checkoutID, creditsAmount,
	).Scan(&paymentID)
	require.NoError(t, err)
	return paymentID
}

func checkoutCompletedEvent(t *testing.T, checkoutID, intentID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             checkoutID,
		"payment_intent": map[string]any{"id": intentID},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestWebhook_ReplayGrantsOnce(t *testing.T) {
	svc, users, credits := setupWebhook(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-webhook-replay", "")
	require.NoError(t, err)
	paymentID := insertCheckoutPayment(t, svc, user.ID, "cs_test_replay", 30)

	event := checkoutCompletedEvent(t, "cs_test_replay", "pi_test_replay")

	outcome, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	// Stripe redelivers; the second delivery must not grant again.
	outcome, err = svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)

	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)

	var status models.PaymentStatus
	var intentID *string
	err = svc.pool.QueryRow(ctx,
		`SELECT status, stripe_payment_intent_id FROM payments WHERE id = $1`,
		paymentID).Scan(&status, &intentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, status)
	require.NotNil(t, intentID)
	assert.Equal(t, "pi_test_replay", *intentID)
}

func TestWebhook_CompletesSweptPayment(t *testing.T) {
	svc, users, credits := setupWebhook(t)
	ctx := context.Background()

	user, err := users.GetOrCreateByFirebaseUID(ctx, "uid-webhook-swept", "")
	require.NoError(t, err)
	paymentID := insertCheckoutPayment(t, svc, user.ID, "cs_test_swept", 100)

	// The retention sweeper gave up on this payment before the webhook
	// arrived.
	_, err = svc.pool.Exec(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2`,
		models.PaymentStatusFailed, paymentID)
	require.NoError(t, err)

	outcome, err := svc.HandleEvent(ctx, checkoutCompletedEvent(t, "cs_test_swept", "pi_test_swept"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	balance, err := credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance)
}

func TestWebhook_UnknownPaymentIgnored(t *testing.T) {
	svc, _, _ := setupWebhook(t)

	outcome, err := svc.HandleEvent(context.Background(),
		checkoutCompletedEvent(t, "cs_test_missing", "pi_test_missing"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}
