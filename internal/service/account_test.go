package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/groupify/accounts-go/internal/model"
	"github.com/groupify/accounts-go/internal/repository"
)

type accountFixture struct {
	users    *MockUserStore
	tokens   *MockTokenStore
	notifier *MockNotifier
	tx       *fakeTx
	svc      *AccountService
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		users:    new(MockUserStore),
		tokens:   new(MockTokenStore),
		notifier: new(MockNotifier),
		tx:       new(fakeTx),
	}
	verification := newTestVerificationService(f.tokens)
	f.svc = NewAccountService(newNoopLogger(), f.tx, f.users, verification, plainHasher{}, f.notifier, time.Second)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestRegister_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{name: "no email", req: model.RegisterRequest{Password: "pw", Country: "US"}},
		{name: "no password", req: model.RegisterRequest{Email: "a@x.com", Country: "US"}},
		{name: "no country", req: model.RegisterRequest{Email: "a@x.com", Password: "pw"}},
		{name: "empty", req: model.RegisterRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture()

			_, err := f.svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrMissingRegistrationFields)
			f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_Success(t *testing.T) {
	f := newAccountFixture()

	var created *model.User
	var issued *model.VerificationToken
	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("Create", inTx, mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.User) }).
		Return(nil)
	f.tokens.On("Create", inTx, mock.AnythingOfType("*model.VerificationToken")).
		Run(func(args mock.Arguments) { issued = args.Get(1).(*model.VerificationToken) }).
		Return(nil)
	f.notifier.On("SendVerificationCode", mock.Anything, "a@x.com", mock.AnythingOfType("string")).Return(nil)

	resp, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "User registered successfully.", resp.Message)
	assert.Equal(t, created.ID, resp.UserID)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "hashed:pw", created.PasswordHash)
	assert.Equal(t, "US", created.Country)
	assert.False(t, created.IsConfirmed)
	assert.Equal(t, fixedNow, created.CreatedAt)

	require.NotNil(t, issued)
	assert.Equal(t, created.ID, issued.UserID)
	f.notifier.AssertCalled(t, "SendVerificationCode", mock.Anything, "a@x.com", issued.Code)
}

func TestRegister_EmailAlreadyRegistered(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(&model.User{ID: "existing"}, nil)

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	assert.ErrorIs(t, err, ErrEmailRegistered)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateDetectedByStore(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail)

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	assert.ErrorIs(t, err, ErrEmailRegistered)
	f.tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_NotifierFailureIsSwallowed(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tokens.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendVerificationCode", mock.Anything, "a@x.com", mock.Anything).Return(errors.New("smtp down"))

	resp, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.UserID)
}

func TestRegister_NotifierOutlivesCanceledRequest(t *testing.T) {
	f := newAccountFixture()

	ctx, cancel := context.WithCancel(context.Background())

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tokens.On("Create", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil)
	f.notifier.On("SendVerificationCode", mock.Anything, "a@x.com", mock.Anything).
		Run(func(args mock.Arguments) {
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(nil)

	_, err := f.svc.Register(ctx, model.RegisterRequest{Email: "a@x.com", Password: "pw", Country: "US"})
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestRegister_TokenIssueFailure(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tokens.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.tx.rollbacks)
	f.notifier.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_HashFailure(t *testing.T) {
	f := newAccountFixture()
	f.svc.hasher = plainHasher{err: errors.New("entropy exhausted")}

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{
		Email: "a@x.com", Password: "pw", Country: "US",
	})
	require.Error(t, err)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirmEmail_MissingFields(t *testing.T) {
	f := newAccountFixture()

	_, err := f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrMissingConfirmationFields)

	_, err = f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Code: "code"})
	assert.ErrorIs(t, err, ErrMissingConfirmationFields)
}

func TestConfirmEmail_UnknownUser(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Email: "nobody@x.com", Code: "code"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConfirmEmail_TokenOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{name: "invalid", storeErr: repository.ErrTokenNotFound, wantErr: ErrInvalidToken},
		{name: "expired", storeErr: repository.ErrTokenExpired, wantErr: ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture()

			f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(&model.User{ID: "user-1"}, nil)
			f.tokens.On("Consume", mock.Anything, "user-1", "code", fixedNow).Return(tt.storeErr)

			_, err := f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Email: "a@x.com", Code: "code"})
			assert.ErrorIs(t, err, tt.wantErr)
			f.users.AssertNotCalled(t, "SetConfirmed", mock.Anything, mock.Anything)
		})
	}
}

func TestConfirmEmail_Success(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(&model.User{ID: "user-1"}, nil)
	f.tokens.On("Consume", inTx, "user-1", "code", fixedNow).Return(nil)
	f.users.On("SetConfirmed", inTx, "user-1").Return(nil)

	resp, err := f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Email: "a@x.com", Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, "Email confirmed successfully.", resp.Message)
	f.users.AssertExpectations(t)
}

func TestConfirmEmail_ConfirmFailureRollsBack(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(&model.User{ID: "user-1"}, nil)
	f.tokens.On("Consume", inTx, "user-1", "code", fixedNow).Return(nil)
	f.users.On("SetConfirmed", inTx, "user-1").Return(errors.New("db down"))

	_, err := f.svc.ConfirmEmail(context.Background(), model.ConfirmEmailRequest{Email: "a@x.com", Code: "code"})
	require.Error(t, err)
	assert.Equal(t, 1, f.tx.rollbacks)
}

func TestLogin_UnknownEmailStillVerifies(t *testing.T) {
	f := newAccountFixture()
	hasher := &countingHasher{}
	f.svc.hasher = hasher

	f.users.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "nobody@x.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.verifies)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAccountFixture()

	_, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = f.svc.Login(context.Background(), model.LoginRequest{Password: "pw"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("GetByEmail", mock.Anything, "a@x.com").
		Return(&model.User{ID: "user-1", PasswordHash: "hashed:pw", IsConfirmed: true}, nil)

	_, unknownErr := f.svc.Login(context.Background(), model.LoginRequest{Email: "nobody@x.com", Password: "pw"})
	_, wrongErr := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com", Password: "nope"})

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLogin_Unconfirmed(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").
		Return(&model.User{ID: "user-1", PasswordHash: "hashed:pw", IsConfirmed: false}, nil)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnconfirmedWithWrongPassword(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").
		Return(&model.User{ID: "user-1", PasswordHash: "hashed:pw", IsConfirmed: false}, nil)

	_, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Success(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").
		Return(&model.User{ID: "user-1", PasswordHash: "hashed:pw", IsConfirmed: true}, nil)

	resp, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.AccountResponse{Message: "Login successful.", UserID: "user-1"}, resp)
}

func TestLogin_StoreError(t *testing.T) {
	f := newAccountFixture()

	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("db down"))

	_, err := f.svc.Login(context.Background(), model.LoginRequest{Email: "a@x.com", Password: "pw"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
