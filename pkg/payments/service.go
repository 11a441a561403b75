package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/services"
)

// Service creates Stripe checkout sessions and payment intents, recording
// a pending Payment row for each so the webhook reconciler can complete it.
type Service struct {
	api           *client.API
	pool          *pgxpool.Pool
	users         *services.UserService
	credits       *services.CreditService
	webhookSecret string
}

// NewService builds the payment service from Stripe configuration.
func NewService(cfg config.StripeConfig, pool *pgxpool.Pool, users *services.UserService, credits *services.CreditService) (*Service, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("stripe is not configured")
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Service{
		api:           api,
		pool:          pool,
		users:         users,
		credits:       credits,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

const paymentColumns = `id, user_id, stripe_checkout_session_id, stripe_payment_intent_id,
	amount_cents, currency, credits_amount, status, COALESCE(package_id, ''), created_at, completed_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.StripeCheckoutSessionID, &p.StripePaymentIntentID,
		&p.AmountCents, &p.Currency, &p.CreditsAmount, &p.Status, &p.PackageID,
		&p.CreatedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

// ensureCustomer returns the user's Stripe customer ID, creating the
// customer on first use.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	params.AddMetadata("user_id", user.ID.String())

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %w", err)
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return "", err
	}
	return customer.ID, nil
}

// CheckoutResult is the response to a hosted-checkout request.
type CheckoutResult struct {
	CheckoutURL       string    `json:"checkout_url"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	PaymentID         uuid.UUID `json:"payment_id"`
}

// CreateCheckout creates a hosted Stripe Checkout session for a catalog
// package and records the pending payment row keyed by the session ID.
func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID, packageID, successURL, cancelURL string) (*CheckoutResult, error) {
	if successURL == "" || cancelURL == "" {
		return nil, services.NewValidationError("success_url", "success_url and cancel_url are required")
	}

	pkg, err := s.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, services.NewValidationError("package_id", "unknown package")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(pkg.PriceID),
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("package_id", pkg.ID)

	checkout, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	var paymentID uuid.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO payments (user_id, stripe_checkout_session_id, amount_cents, currency, credits_amount, package_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		userID, checkout.ID, pkg.AmountCents, pkg.Currency, pkg.Credits, pkg.ID,
	).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return &CheckoutResult{
		CheckoutURL:       checkout.URL,
		CheckoutSessionID: checkout.ID,
		PaymentID:         paymentID,
	}, nil
}

// IntentResult is the response to an in-app payment-intent request.
type IntentResult struct {
	ClientSecret    string    `json:"client_secret"`
	PaymentIntentID string    `json:"payment_intent_id"`
	PaymentID       uuid.UUID `json:"payment_id"`
}

// CreatePaymentIntent creates a Stripe PaymentIntent for a catalog package
// and records the pending payment row keyed by the intent ID.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, packageID string) (*IntentResult, error) {
	pkg, err := s.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, services.NewValidationError("package_id", "unknown package")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pkg.AmountCents),
		Currency: stripe.String(pkg.Currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("package_id", pkg.ID)

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	var paymentID uuid.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO payments (user_id, stripe_payment_intent_id, amount_cents, currency, credits_amount, package_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		userID, intent.ID, pkg.AmountCents, pkg.Currency, pkg.Credits, pkg.ID,
	).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentID:       paymentID,
	}, nil
}

// History returns the user's payments, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
