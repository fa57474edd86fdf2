package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/groupify/accounts-go/internal/crypto"
	"github.com/groupify/accounts-go/internal/lib/sl"
	"github.com/groupify/accounts-go/internal/model"
	"github.com/groupify/accounts-go/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid or expired verification code")
	ErrExpiredToken = errors.New("verification code has expired")
)

// TokenStore persists verification tokens.
type TokenStore interface {
	Create(ctx context.Context, token *model.VerificationToken) error
	Consume(ctx context.Context, userID, code string, now time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// VerificationService issues and consumes one-time email verification codes.
type VerificationService struct {
	log   *slog.Logger
	store TokenStore
	ttl   time.Duration
	now   func() time.Time
}

// NewVerificationService creates a VerificationService whose codes live for ttl.
func NewVerificationService(log *slog.Logger, store TokenStore, ttl time.Duration) *VerificationService {
	return &VerificationService{
		log:   log,
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue stores a fresh code for userID and returns it for delivery.
// Codes issued earlier for the same user stay valid.
func (s *VerificationService) Issue(ctx context.Context, userID string) (string, error) {
	code, err := crypto.GenerateCode()
	if err != nil {
		return "", fmt.Errorf("generating verification code: %w", err)
	}

	now := s.now()
	token := &model.VerificationToken{
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, token); err != nil {
		return "", err
	}

	return code, nil
}

// Consume redeems code for userID. It succeeds at most once per code.
func (s *VerificationService) Consume(ctx context.Context, userID, code string) error {
	err := s.store.Consume(ctx, userID, code, s.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTokenNotFound):
		return ErrInvalidToken
	case errors.Is(err, repository.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return err
	}
}

// PurgeExpired deletes tokens that expired more than retention ago.
func (s *VerificationService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteExpiredBefore(ctx, s.now().Add(-retention))
}

// RunSweeper calls PurgeExpired every interval until ctx is done. onPurged,
// if set, receives the number of rows removed by each pass.
func (s *VerificationService) RunSweeper(ctx context.Context, interval, retention time.Duration, onPurged func(int64)) {
	const op = "service.VerificationService.RunSweeper"
	log := s.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx, retention)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("failed to purge expired verification tokens", sl.Err(err))
				}
				continue
			}
			if n > 0 {
				log.Info("purged expired verification tokens", slog.Int64("count", n))
			}
			if onPurged != nil {
				onPurged(n)
			}
		}
	}
}
