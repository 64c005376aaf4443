package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = strconv.Itoa(r.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) SetStatus(_ context.Context, id string, status domain.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Status = status
	return nil
}

type fakeLifecycleRepo struct {
	mu    sync.Mutex
	slots map[string]*auth.LifecycleToken
}

func newFakeLifecycleRepo() *fakeLifecycleRepo {
	return &fakeLifecycleRepo{slots: map[string]*auth.LifecycleToken{}}
}

func slotKey(subjectID string, purpose auth.TokenPurpose) string {
	return subjectID + "|" + string(purpose)
}

func (r *fakeLifecycleRepo) Save(_ context.Context, token *auth.LifecycleToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *token
	r.slots[slotKey(token.SubjectID, token.Purpose)] = &clone
	return nil
}

func (r *fakeLifecycleRepo) FindByValue(_ context.Context, purpose auth.TokenPurpose, value string) (*auth.LifecycleToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.slots {
		if token.Purpose == purpose && token.Value == value {
			clone := *token
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeLifecycleRepo) Consume(_ context.Context, subjectID string, purpose auth.TokenPurpose) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := slotKey(subjectID, purpose)
	if _, ok := r.slots[key]; !ok {
		return false, nil
	}
	delete(r.slots, key)
	return true, nil
}

func (r *fakeLifecycleRepo) tokenFor(subjectID string, purpose auth.TokenPurpose) *auth.LifecycleToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[slotKey(subjectID, purpose)]
}

type testEnv struct {
	svc       *AuthService
	users     *fakeUserRepo
	lifecycle *fakeLifecycleRepo
	clock     *fakeClock
	events    *capturedEvents
}

type capturedEvents struct {
	mu     sync.Mutex
	byType map[events.EventType][]events.Event
}

func (c *capturedEvents) record(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byType[event.Type] = append(c.byType[event.Type], event)
	return nil
}

func (c *capturedEvents) of(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byType[eventType]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:                   "test-secret",
			JWTIssuer:                   "auth-service-test",
			AccessTokenTTLMinutes:       15,
			RefreshTokenTTLMinutes:      60,
			EmailVerificationTTLMinutes: 60,
			PasswordResetTTLMinutes:     30,
			BcryptCost:                  4,
		},
	}

	users := newFakeUserRepo()
	lifecycle := newFakeLifecycleRepo()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}

	dispatcher := events.NewInMemoryDispatcher()
	captured := &capturedEvents{byType: map[events.EventType][]events.Event{}}
	for _, eventType := range []events.EventType{
		events.EventUserRegistered,
		events.EventEmailVerified,
		events.EventUserLoggedIn,
		events.EventPasswordResetRequested,
		events.EventPasswordResetCompleted,
	} {
		dispatcher.Subscribe(eventType, captured.record)
	}

	svc, err := NewAuthService(cfg, AuthDependencies{
		UserRepo:      users,
		LifecycleRepo: lifecycle,
		Dispatcher:    dispatcher,
		Clock:         clock,
	})
	require.NoError(t, err)

	return &testEnv{svc: svc, users: users, lifecycle: lifecycle, clock: clock, events: captured}
}

func (e *testEnv) signupVerified(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.svc.Signup(ctx, username, email, password)
	require.NoError(t, err)

	token := e.lifecycle.tokenFor(user.ID, auth.PurposeEmailVerification)
	require.NotNil(t, token)

	verified, err := e.svc.VerifyEmail(ctx, token.Value)
	require.NoError(t, err)
	return verified
}

func TestNewAuthServiceRejectsMissingSecret(t *testing.T) {
	cfg := config.Config{Auth: config.AuthConfig{AccessTokenTTLMinutes: 15, RefreshTokenTTLMinutes: 60}}
	_, err := NewAuthService(cfg, AuthDependencies{})
	assert.Error(t, err)
}

func TestSignupAndVerifyFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Signup(ctx, "alice", "alice@example.com", "s3cret-pw")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusPending, user.Status)
	assert.NotEqual(t, "s3cret-pw", user.PasswordHash)

	// pending accounts cannot log in, with the same error as a wrong password
	_, _, err = env.svc.Login(ctx, "alice", "s3cret-pw", "")
	require.Error(t, err)

	// the registration event carries the same token that was persisted
	registered := env.events.of(events.EventUserRegistered)
	require.Len(t, registered, 1)
	payload := registered[0].Payload.(events.UserRegisteredPayload)
	stored := env.lifecycle.tokenFor(user.ID, auth.PurposeEmailVerification)
	require.NotNil(t, stored)
	assert.Equal(t, stored.Value, payload.VerificationToken)

	verified, err := env.svc.VerifyEmail(ctx, payload.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, verified.Status)

	loggedIn, pair, err := env.svc.Login(ctx, "alice", "s3cret-pw", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	principal, err := env.svc.Tokens().ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.SubjectID)
	assert.Equal(t, "alice", principal.Username)
}

func TestSignupDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, "alice", "alice@example.com", "s3cret-pw")
	require.NoError(t, err)

	_, err = env.svc.Signup(ctx, "alice", "other@example.com", "s3cret-pw")
	assert.Error(t, err)

	_, err = env.svc.Signup(ctx, "bob", "alice@example.com", "s3cret-pw")
	assert.Error(t, err)
}

func TestVerifyEmailTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Signup(ctx, "alice", "alice@example.com", "s3cret-pw")
	require.NoError(t, err)

	token := env.lifecycle.tokenFor(user.ID, auth.PurposeEmailVerification)
	require.NotNil(t, token)

	_, err = env.svc.VerifyEmail(ctx, token.Value)
	require.NoError(t, err)

	// replaying the consumed value must fail
	_, err = env.svc.VerifyEmail(ctx, token.Value)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Signup(ctx, "alice", "alice@example.com", "s3cret-pw")
	require.NoError(t, err)

	token := env.lifecycle.tokenFor(user.ID, auth.PurposeEmailVerification)
	require.NotNil(t, token)

	env.clock.now = token.ExpiresAt
	_, err = env.svc.VerifyEmail(ctx, token.Value)
	require.Error(t, err)
	// expired and unknown tokens are indistinguishable to the caller
	assert.Equal(t, "invalid or expired token", apperrors.ToDomainError(err).Message)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signupVerified(t, "alice", "alice@example.com", "old-password")

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "alice@example.com", ""))

	token := env.lifecycle.tokenFor(user.ID, auth.PurposePasswordReset)
	require.NotNil(t, token)

	require.NoError(t, env.svc.ResetPassword(ctx, token.Value, "new-password"))

	// the slot was cleared on consumption
	assert.Nil(t, env.lifecycle.tokenFor(user.ID, auth.PurposePasswordReset))

	_, _, err := env.svc.Login(ctx, "alice", "old-password", "")
	assert.Error(t, err)

	_, _, err = env.svc.Login(ctx, "alice", "new-password", "")
	assert.NoError(t, err)

	// replaying the consumed token must fail
	err = env.svc.ResetPassword(ctx, token.Value, "another-password")
	assert.Error(t, err)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	// unknown addresses succeed silently so existence never leaks
	err := env.svc.RequestPasswordReset(context.Background(), "nobody@example.com", "")
	assert.NoError(t, err)
	assert.Empty(t, env.events.of(events.EventPasswordResetRequested))
}

func TestLifecycleTokensDoNotCrossPurposes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signupVerified(t, "alice", "alice@example.com", "s3cret-pw")

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "alice@example.com", ""))
	resetToken := env.lifecycle.tokenFor(user.ID, auth.PurposePasswordReset)
	require.NotNil(t, resetToken)

	// a reset token presented to the verification flow finds no match
	_, err := env.svc.VerifyEmail(ctx, resetToken.Value)
	require.Error(t, err)

	// and the reset slot is untouched by the failed attempt
	assert.NotNil(t, env.lifecycle.tokenFor(user.ID, auth.PurposePasswordReset))
}

func TestRefreshFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signupVerified(t, "alice", "alice@example.com", "s3cret-pw")

	_, pair, err := env.svc.Login(ctx, "alice", "s3cret-pw", "")
	require.NoError(t, err)

	refreshedUser, renewed, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshedUser.ID)
	assert.NotEqual(t, pair.RefreshToken, renewed.RefreshToken)

	principal, err := env.svc.Tokens().ValidateAccessToken(renewed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.SubjectID)

	// an access token is not accepted for refresh
	_, _, err = env.svc.Refresh(ctx, pair.AccessToken)
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signupVerified(t, "alice", "alice@example.com", "old-password")

	err := env.svc.ChangePassword(ctx, user.ID, "wrong-password", "new-password")
	assert.Error(t, err)

	require.NoError(t, env.svc.ChangePassword(ctx, user.ID, "old-password", "new-password"))

	_, _, err = env.svc.Login(ctx, "alice", "new-password", "")
	assert.NoError(t, err)
}
