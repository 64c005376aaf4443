package auth

import (
	"errors"
	"fmt"
)

// Token validation failures. Callers should map all of these onto a generic
// authentication-failure response rather than exposing which check failed.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongTokenType   = errors.New("wrong token type")
	ErrTokenNotFound    = errors.New("token not found")

	ErrMissingAuthHeader   = errors.New("authorization header not found")
	ErrMalformedAuthHeader = errors.New("invalid authorization header format")

	// ErrUnauthorized wraps every token-level failure surfaced by the token
	// service and the guard.
	ErrUnauthorized = errors.New("unauthorized")
)

func unauthorized(err error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, err)
}
