package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the reconciliation state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment tracks one purchase attempt from initiation through webhook
// reconciliation. Completion is the only transition that grants credits,
// and it happens at most once per payment row.
type Payment struct {
	ID                      uuid.UUID     `json:"id"`
	UserID                  uuid.UUID     `json:"user_id"`
	StripeCheckoutSessionID *string       `json:"stripe_checkout_session_id,omitempty"`
	StripePaymentIntentID   *string       `json:"stripe_payment_intent_id,omitempty"`
	AmountCents             int64         `json:"amount_cents"`
	Currency                string        `json:"currency"`
	CreditsAmount           int           `json:"credits_amount"`
	Status                  PaymentStatus `json:"status"`
	PackageID               string        `json:"package_id,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
	CompletedAt             *time.Time    `json:"completed_at,omitempty"`
}

// CreditPackage is a purchasable credit bundle resolved from the Stripe catalog.
type CreditPackage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int    `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	PriceID     string `json:"-"`
}
