package auth

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair is the outbound token contract returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Principal is the resolved identity after successful access-token
// validation, scoped to a single request.
type Principal struct {
	SubjectID string
	Username  string
}

// UserLookup resolves a subject id to the username carried on reissued access
// tokens. An error means the subject no longer exists.
type UserLookup func(ctx context.Context, subjectID string) (string, error)

// TokenService issues access/refresh token pairs and validates incoming
// tokens. Stateless; every token's validity is re-derived from its signature
// and embedded expiry.
type TokenService struct {
	codec      *TokenCodec
	clock      Clock
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService builds the service. Non-positive TTLs are configuration
// errors.
func NewTokenService(codec *TokenCodec, issuer string, accessTTL, refreshTTL time.Duration, clock Clock) (*TokenService, error) {
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &TokenService{
		codec:      codec,
		clock:      clock,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueTokenPair signs a fresh access/refresh pair for the subject. The access
// token carries the username; the refresh token carries the subject only.
// ExpiresIn is the access TTL in seconds.
func (s *TokenService) IssueTokenPair(subjectID, username string) (*TokenPair, error) {
	now := s.clock.Now()

	access, err := s.codec.Encode(&Claims{
		Username:  username,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.codec.Encode(&Claims{
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// ValidateAccessToken decodes the token and resolves the request principal.
func (s *TokenService) ValidateAccessToken(tokenStr string) (*Principal, error) {
	claims, err := s.codec.Decode(tokenStr)
	if err != nil {
		return nil, unauthorized(err)
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, unauthorized(ErrWrongTokenType)
	}
	return &Principal{SubjectID: claims.Subject, Username: claims.Username}, nil
}

// ValidateRefreshToken decodes the token and returns the subject id. The
// caller is responsible for verifying the subject still exists.
func (s *TokenService) ValidateRefreshToken(tokenStr string) (string, error) {
	claims, err := s.codec.Decode(tokenStr)
	if err != nil {
		return "", unauthorized(err)
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", unauthorized(ErrWrongTokenType)
	}
	return claims.Subject, nil
}

// Refresh exchanges a valid refresh token for a new pair. A new refresh token
// is issued every time; the old one stays valid until its own expiry since no
// revocation state is kept.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string, lookup UserLookup) (*TokenPair, error) {
	subjectID, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	username, err := lookup(ctx, subjectID)
	if err != nil {
		return nil, unauthorized(err)
	}

	return s.IssueTokenPair(subjectID, username)
}

// AccessTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}
