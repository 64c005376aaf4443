package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// AuthService coordinates signup, login, email verification, password reset
// and token refresh flows on top of the stateless token core.
type AuthService struct {
	users        repository.UserRepository
	lifecycle    repository.LifecycleTokenRepository
	tokens       *auth.TokenService
	lifecycleMgr *auth.LifecycleTokenManager
	limiter      *auth.Limiter
	dispatcher   events.Dispatcher
	clock        auth.Clock
	cfg          config.AuthConfig
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo      repository.UserRepository
	LifecycleRepo repository.LifecycleTokenRepository
	Dispatcher    events.Dispatcher
	Limiter       *auth.Limiter
	Clock         auth.Clock
}

// NewAuthService builds the service and its token core. Misconfiguration
// (empty secret, non-positive TTLs) fails here, at startup.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	clock := deps.Clock
	if clock == nil {
		clock = auth.SystemClock()
	}

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, clock)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(codec, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL(), clock)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:        deps.UserRepo,
		lifecycle:    deps.LifecycleRepo,
		tokens:       tokens,
		lifecycleMgr: auth.NewLifecycleTokenManager(clock),
		limiter:      deps.Limiter,
		dispatcher:   deps.Dispatcher,
		clock:        clock,
		cfg:          cfg.Auth,
	}, nil
}

// Tokens exposes the token service for the guard.
func (s *AuthService) Tokens() *auth.TokenService {
	return s.tokens
}

// Signup creates a pending account and issues its email verification token.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Status:       domain.UserStatusPending,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.lifecycleMgr.Generate(user.ID, auth.PurposeEmailVerification, s.cfg.EmailVerificationTTL())
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.Save(ctx, token); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username:          user.Username,
		Email:             user.Email,
		VerificationToken: token.Value,
	})

	return user, nil
}

// Login authenticates username/password and issues a token pair. Pending and
// unknown accounts fail with the same message so probing reveals nothing.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*domain.User, *auth.TokenPair, error) {
	if err := s.allow(ctx, "login", username, clientIP); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("incorrect username or password")
		}
		return nil, nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("incorrect username or password")
	}
	if user.Status != domain.UserStatusActive {
		return nil, nil, apperrors.NewUnauthorized("incorrect username or password")
	}

	pair, err := s.tokens.IssueTokenPair(user.ID, user.Username)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, events.UserLoggedInPayload{Username: user.Username})

	return user, pair, nil
}

// VerifyEmail consumes a verification token and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, tokenValue string) (*domain.User, error) {
	stored, err := s.findLifecycleToken(ctx, auth.PurposeEmailVerification, tokenValue)
	if err != nil {
		return nil, err
	}

	subjectID, err := s.lifecycleMgr.Validate(tokenValue, stored)
	if err != nil {
		return nil, invalidLifecycleToken()
	}

	consumed, err := s.lifecycle.Consume(ctx, subjectID, auth.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// lost the race against a concurrent verification
		return nil, invalidLifecycleToken()
	}

	if err := s.users.SetStatus(ctx, subjectID, domain.UserStatusActive); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventEmailVerified, user.ID, events.EmailVerifiedPayload{Email: user.Email})

	return user, nil
}

// RequestPasswordReset issues a reset token for the account behind the email.
// The outcome is identical whether or not the address exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, clientIP string) error {
	if err := s.allow(ctx, "pwd_reset", email, clientIP); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	token, err := s.lifecycleMgr.Generate(user.ID, auth.PurposePasswordReset, s.cfg.PasswordResetTTL())
	if err != nil {
		return err
	}
	if err := s.lifecycle.Save(ctx, token); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordResetRequested, user.ID, events.PasswordResetRequestedPayload{
		Email:      user.Email,
		ResetToken: token.Value,
	})

	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	stored, err := s.findLifecycleToken(ctx, auth.PurposePasswordReset, tokenValue)
	if err != nil {
		return err
	}

	subjectID, err := s.lifecycleMgr.Validate(tokenValue, stored)
	if err != nil {
		return invalidLifecycleToken()
	}

	consumed, err := s.lifecycle.Consume(ctx, subjectID, auth.PurposePasswordReset)
	if err != nil {
		return err
	}
	if !consumed {
		return invalidLifecycleToken()
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, subjectID, hash); err != nil {
		return err
	}

	if user, err := s.users.GetByID(ctx, subjectID); err == nil {
		s.publish(ctx, events.EventPasswordResetCompleted, user.ID, events.PasswordResetCompletedPayload{Email: user.Email})
	}

	return nil
}

// Refresh exchanges a refresh token for a new pair, verifying the account
// still exists.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *auth.TokenPair, error) {
	var user *domain.User
	pair, err := s.tokens.Refresh(ctx, refreshToken, func(ctx context.Context, subjectID string) (string, error) {
		u, err := s.users.GetByID(ctx, subjectID)
		if err != nil {
			return "", err
		}
		user = u
		return u.Username, nil
	})
	if err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid or expired refresh token")
	}
	return user, pair, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, subjectID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("incorrect password")
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, subjectID, hash)
}

// GetUser loads the account behind a principal.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// Logout is a no-op: tokens are stateless and there is no revocation list, so
// the client discards its pair.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

func (s *AuthService) findLifecycleToken(ctx context.Context, purpose auth.TokenPurpose, value string) (*auth.LifecycleToken, error) {
	if value == "" {
		return nil, invalidLifecycleToken()
	}
	stored, err := s.lifecycle.FindByValue(ctx, purpose, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidLifecycleToken()
		}
		return nil, err
	}
	return stored, nil
}

func (s *AuthService) allow(ctx context.Context, scope, identifier, clientIP string) error {
	if err := s.limiter.Allow(ctx, scope, identifier); err != nil {
		return mapLimiterError(err)
	}
	if clientIP != "" {
		if err := s.limiter.Allow(ctx, scope+"_ip", clientIP); err != nil {
			return mapLimiterError(err)
		}
	}
	return nil
}

func mapLimiterError(err error) error {
	if errors.Is(err, auth.ErrRateLimited) {
		return apperrors.NewTooManyRequests("too many attempts, try again later")
	}
	return err
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subjectID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	})
}

// invalidLifecycleToken deliberately collapses not-found and expired so
// callers cannot learn which tokens ever existed.
func invalidLifecycleToken() error {
	return apperrors.NewValidationError("invalid or expired token", nil)
}
