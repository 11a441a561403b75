package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/models"
)

// UserService manages user accounts and preferences.
type UserService struct {
	pool *pgxpool.Pool
}

// NewUserService creates a new user service.
func NewUserService(pool *pgxpool.Pool) *UserService {
	return &UserService{pool: pool}
}

const userColumns = `id, firebase_uid, COALESCE(email, ''), credits, fcm_token,
	preferred_language, stripe_customer_id, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirebaseUID, &u.Email, &u.Credits, &u.FCMToken,
		&u.PreferredLanguage, &u.StripeCustomerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetOrCreateByFirebaseUID provisions a user on first authenticated request.
// The upsert keeps concurrent first requests race-free: both resolve to the
// same row.
func (s *UserService) GetOrCreateByFirebaseUID(ctx context.Context, firebaseUID, email string) (*models.User, error) {
	if firebaseUID == "" {
		return nil, NewValidationError("firebase_uid", "must not be empty")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (firebase_uid, email)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (firebase_uid)
		DO UPDATE SET email = COALESCE(users.email, EXCLUDED.email)
		RETURNING `+userColumns,
		firebaseUID, email,
	)
	return scanUser(row)
}

// GetByID fetches a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// SetPreferredLanguage stores the UI language preference.
func (s *UserService) SetPreferredLanguage(ctx context.Context, userID uuid.UUID, lang string) error {
	if !models.IsSupportedUILanguage(lang) {
		return NewValidationError("language", "must be one of: pt, en")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET preferred_language = $1 WHERE id = $2`, lang, userID)
	if err != nil {
		return fmt.Errorf("failed to update preferred language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFCMToken stores or clears the push notification token.
func (s *UserService) SetFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET fcm_token = NULLIF($1, '') WHERE id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("failed to update fcm token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStripeCustomerID records the Stripe customer created for this user.
func (s *UserService) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $1 WHERE id = $2`, customerID, userID)
	if err != nil {
		return fmt.Errorf("failed to update stripe customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
