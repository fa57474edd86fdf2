package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/groupify/accounts-go/internal/model"
)

var (
	ErrTokenNotFound = errors.New("verification token not found")
	ErrTokenExpired  = errors.New("verification token expired")
)

// TokenRepository handles verification token persistence operations.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a token and sets its generated ID.
func (r *TokenRepository) Create(ctx context.Context, token *model.VerificationToken) error {
	query := `INSERT INTO verification_tokens (user_id, code, expires_at, created_at) VALUES (?, ?, ?, ?)`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, token.UserID, token.Code, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting verification token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading verification token id: %w", err)
	}

	token.ID = id
	return nil
}

// Consume deletes the unexpired token matching userID and code.
//
// The delete is conditional, so of several concurrent callers presenting the
// same code only one sees an affected row. When nothing was deleted the pair
// is looked up again to tell an expired token (left in place) from a missing one.
func (r *TokenRepository) Consume(ctx context.Context, userID, code string, now time.Time) error {
	query := `DELETE FROM verification_tokens WHERE user_id = ? AND code = ? AND expires_at > ?`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID, code, now)
	if err != nil {
		return fmt.Errorf("deleting verification token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM verification_tokens WHERE user_id = ? AND code = ?)`,
		userID, code,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking verification token: %w", err)
	}

	if exists {
		return ErrTokenExpired
	}
	return ErrTokenNotFound
}

// DeleteExpiredBefore removes tokens that expired before cutoff and returns how many were removed.
func (r *TokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging verification tokens: %w", err)
	}

	return result.RowsAffected()
}
