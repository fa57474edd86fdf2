package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/groupify/accounts-go/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The unique index on email makes a concurrent
// duplicate registration fail here with ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, country, is_confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Country, user.IsConfirmed, user.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, country, is_confirmed, created_at
		FROM users WHERE email = ?`

	user := &model.User{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Country, &user.IsConfirmed, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("selecting user by email: %w", err)
	}

	return user, nil
}

// SetConfirmed marks the user's email as confirmed. Confirming an already
// confirmed user is not an error.
func (r *UserRepository) SetConfirmed(ctx context.Context, id string) error {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}

	if _, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET is_confirmed = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("confirming user: %w", err)
	}

	return nil
}
