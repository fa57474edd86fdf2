package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/groupify/accounts-go/internal/model"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxKey struct{}

// fakeTx runs fn with a marked context and counts rollbacks.
type fakeTx struct {
	rollbacks int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.rollbacks++
		return err
	}
	return nil
}

// inTx matches contexts handed out by fakeTx.
var inTx = mock.MatchedBy(func(ctx context.Context) bool {
	return ctx.Value(fakeTxKey{}) != nil
})

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) SetConfirmed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Create(ctx context.Context, token *model.VerificationToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenStore) Consume(ctx context.Context, userID, code string, now time.Time) error {
	return m.Called(ctx, userID, code, now).Error(0)
}

func (m *MockTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

// plainHasher marks digests with a prefix so tests can tell hashed from raw values.
type plainHasher struct {
	err error
}

func (h plainHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

func (h plainHasher) Verify(password, digest string) bool {
	return digest == "hashed:"+password
}

// countingHasher records how often Verify runs.
type countingHasher struct {
	plainHasher
	verifies int
}

func (h *countingHasher) Verify(password, digest string) bool {
	h.verifies++
	return h.plainHasher.Verify(password, digest)
}
