package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/metrics"
)

// CreditService performs atomic credit accounting. All mutations are single
// conditional UPDATEs: the balance can never go negative, regardless of how
// many requests race.
type CreditService struct {
	pool *pgxpool.Pool
}

// NewCreditService creates a new credit service.
func NewCreditService(pool *pgxpool.Pool) *CreditService {
	return &CreditService{pool: pool}
}

// Balance returns the current credit balance.
func (s *CreditService) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var credits int
	err := s.pool.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return credits, nil
}

// DebitTx debits amount credits inside an existing transaction.
// Returns ErrInsufficientCredits when the conditional update matches no row.
func (s *CreditService) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user is missing or the balance is short; distinguish
		// so callers can report correctly.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientCredits
	}

	metrics.CreditsDebited.Add(float64(amount))
	return nil
}

// GrantTx adds credits inside an existing transaction (payment completion,
// refunds).
func (s *CreditService) GrantTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET credits = credits + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	metrics.CreditsGranted.Add(float64(amount))
	return nil
}

// Grant adds credits outside a broader transaction.
func (s *CreditService) Grant(ctx context.Context, userID uuid.UUID, amount int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.GrantTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
