package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/memora-app/memora/pkg/metrics"
	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/services"
)

// Webhook handling outcomes, reported back to Stripe and to metrics.
const (
	OutcomeGranted          = "granted"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeMarkedFailed     = "marked_failed"
	OutcomeIgnored          = "ignored"
)

// ErrInvalidSignature is returned when webhook signature verification fails.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyEvent checks the Stripe signature header and parses the event.
func (s *Service) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// HandleEvent runs the reconciliation state machine for one webhook event.
// Replays are safe: completion is applied at most once per payment row, and
// every later delivery reports already_processed.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (string, error) {
	outcome, err := s.handleEvent(ctx, event)
	status := outcome
	if err != nil {
		status = "error"
	}
	metrics.WebhookEvents.WithLabelValues(string(event.Type), status).Inc()
	return outcome, err
}

func (s *Service) handleEvent(ctx context.Context, event stripe.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		var intentID string
		if cs.PaymentIntent != nil {
			intentID = cs.PaymentIntent.ID
		}
		return s.complete(ctx, `stripe_checkout_session_id`, cs.ID, intentID)

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		return s.complete(ctx, `stripe_payment_intent_id`, pi.ID, "")

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		return s.markFailed(ctx, pi.ID)

	case "checkout.session.expired":
		slog.Info("Checkout session expired", "event_id", event.ID)
		return OutcomeIgnored, nil

	default:
		slog.Debug("Unhandled webhook event type", "type", event.Type)
		return OutcomeIgnored, nil
	}
}

// complete transitions a payment to completed and grants its credits, all
// in one transaction. handleColumn selects which external handle identifies
// the row.
//
// Any non-completed row is eligible, including one the retention sweeper
// already marked failed: Stripe retries a failed intent with a new payment
// method, so a late success is a real sale. Completed rows report
// already_processed and are never granted twice.
func (s *Service) complete(ctx context.Context, handleColumn, handle, intentID string) (string, error) {
	if handle == "" {
		return OutcomeIgnored, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+handleColumn+` = $1 FOR UPDATE`,
		handle)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Row created elsewhere or lost; nothing local to reconcile.
			slog.Warn("Webhook for unknown payment", "handle", handle)
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		return OutcomeAlreadyProcessed, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, completed_at = $2,
		    stripe_payment_intent_id = COALESCE(stripe_payment_intent_id, NULLIF($3, ''))
		WHERE id = $4`,
		models.PaymentStatusCompleted, time.Now(), intentID, payment.ID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("failed to complete payment: %w", err)
	}

	if err := s.credits.GrantTx(ctx, tx, payment.UserID, payment.CreditsAmount); err != nil {
		return OutcomeIgnored, err
	}

	if err := tx.Commit(ctx); err != nil {
		return OutcomeIgnored, fmt.Errorf("failed to commit payment completion: %w", err)
	}

	slog.Info("Payment completed",
		"payment_id", payment.ID, "user_id", payment.UserID,
		"credits", payment.CreditsAmount)
	return OutcomeGranted, nil
}

// markFailed moves a pending payment to failed. Payments in any other
// status are left alone.
func (s *Service) markFailed(ctx context.Context, intentID string) (string, error) {
	if intentID == "" {
		return OutcomeIgnored, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE payments SET status = $1
		WHERE stripe_payment_intent_id = $2 AND status = $3`,
		models.PaymentStatusFailed, intentID, models.PaymentStatusPending)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return OutcomeIgnored, nil
	}

	slog.Info("Payment marked failed", "payment_intent_id", intentID)
	return OutcomeMarkedFailed, nil
}
