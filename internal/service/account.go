package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/groupify/accounts-go/internal/lib/sl"
	"github.com/groupify/accounts-go/internal/model"
	"github.com/groupify/accounts-go/internal/repository"
)

var (
	ErrMissingRegistrationFields = errors.New("email, password and country are required")
	ErrMissingConfirmationFields = errors.New("email and code are required")
	ErrMissingCredentials        = errors.New("email and password are required")
	ErrEmailRegistered           = errors.New("email already registered")
	ErrUserNotFound              = errors.New("user not found")
	ErrInvalidCredentials        = errors.New("invalid email or password")
	ErrEmailNotConfirmed         = errors.New("email not confirmed")
)

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetConfirmed(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// Transactor runs fn atomically. Stores called with the context passed to fn
// take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers verification codes to users.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// AccountService handles registration, email confirmation and login.
type AccountService struct {
	log         *slog.Logger
	tx          Transactor
	users       UserStore
	tokens      *VerificationService
	hasher      PasswordHasher
	notifier    Notifier
	validate    *validator.Validate
	mailTimeout time.Duration
	now         func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAccountService creates a new AccountService. mailTimeout bounds how long
// a registration waits on verification mail delivery.
func NewAccountService(
	log *slog.Logger,
	tx Transactor,
	users UserStore,
	tokens *VerificationService,
	hasher PasswordHasher,
	notifier Notifier,
	mailTimeout time.Duration,
) *AccountService {
	return &AccountService{
		log:         log,
		tx:          tx,
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		notifier:    notifier,
		validate:    validator.New(),
		mailTimeout: mailTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unconfirmed account and emails it a verification code.
// Mail delivery failures are logged and do not fail the registration.
func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest) (model.AccountResponse, error) {
	const op = "service.AccountService.Register"

	if err := s.validate.Struct(req); err != nil {
		return model.AccountResponse{}, ErrMissingRegistrationFields
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return model.AccountResponse{}, ErrEmailRegistered
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return model.AccountResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AccountResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Country:      req.Country,
		IsConfirmed:  false,
		CreatedAt:    s.now(),
	}

	var code string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		issued, err := s.tokens.Issue(ctx, user.ID)
		if err != nil {
			return err
		}
		code = issued
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.AccountResponse{}, ErrEmailRegistered
		}
		return model.AccountResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, user, code)

	s.log.Info("user registered", slog.String("op", op), slog.String("user_id", user.ID))

	return model.AccountResponse{
		Message: "User registered successfully.",
		UserID:  user.ID,
	}, nil
}

// notify sends the verification code. The send outlives a cancelled request
// context but is bounded by mailTimeout.
func (s *AccountService) notify(ctx context.Context, user *model.User, code string) {
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	defer cancel()

	if err := s.notifier.SendVerificationCode(mailCtx, user.Email, code); err != nil {
		s.log.Error("failed to send verification email",
			slog.String("op", "service.AccountService.notify"),
			slog.String("user_id", user.ID),
			sl.Err(err),
		)
	}
}

// ConfirmEmail redeems a verification code and marks the account confirmed.
func (s *AccountService) ConfirmEmail(ctx context.Context, req model.ConfirmEmailRequest) (model.MessageResponse, error) {
	const op = "service.AccountService.ConfirmEmail"

	if err := s.validate.Struct(req); err != nil {
		return model.MessageResponse{}, ErrMissingConfirmationFields
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.MessageResponse{}, ErrUserNotFound
		}
		return model.MessageResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	// The code is only spent if the account is confirmed with it.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.Consume(ctx, user.ID, req.Code); err != nil {
			return err
		}
		return s.users.SetConfirmed(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			return model.MessageResponse{}, err
		}
		return model.MessageResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("email confirmed", slog.String("op", op), slog.String("user_id", user.ID))

	return model.MessageResponse{Message: "Email confirmed successfully."}, nil
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, req model.LoginRequest) (model.AccountResponse, error) {
	const op = "service.AccountService.Login"

	if err := s.validate.Struct(req); err != nil {
		return model.AccountResponse{}, ErrMissingCredentials
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Spend the same hashing work as for a known email.
			s.hasher.Verify(req.Password, s.dummyHash())
			return model.AccountResponse{}, ErrInvalidCredentials
		}
		return model.AccountResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return model.AccountResponse{}, ErrInvalidCredentials
	}

	if !user.IsConfirmed {
		return model.AccountResponse{}, ErrEmailNotConfirmed
	}

	return model.AccountResponse{
		Message: "Login successful.",
		UserID:  user.ID,
	}, nil
}

// dummyHash returns a digest built with the hasher's cost parameters. Login
// verifies against it when the email is unknown.
func (s *AccountService) dummyHash() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("accounts-dummy-password")
		if err != nil {
			s.log.Error("failed to build dummy password hash", sl.Err(err))
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}
