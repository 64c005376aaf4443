package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"
)

// TokenPurpose distinguishes the single-use lifecycle token slots. A token
// generated for one purpose must never validate under the other; the store
// keeps one pending token per (subject, purpose) and lookups are keyed by
// purpose, so purposes cannot cross.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// LifecycleToken is a one-time-use opaque secret for email verification or
// password reset. The value carries no claims; it is matched by exact value
// against what the store persisted for the subject and purpose.
type LifecycleToken struct {
	Value     string
	SubjectID string
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

// 256 bits of entropy, base64url encoded.
const lifecycleTokenBytes = 32

// LifecycleTokenManager generates and validates single-use tokens. It holds
// no state; persistence and clearing-on-consumption belong to the caller.
type LifecycleTokenManager struct {
	clock Clock
}

// NewLifecycleTokenManager builds the manager.
func NewLifecycleTokenManager(clock Clock) *LifecycleTokenManager {
	if clock == nil {
		clock = SystemClock()
	}
	return &LifecycleTokenManager{clock: clock}
}

// Generate mints a fresh opaque token for the subject and purpose.
func (m *LifecycleTokenManager) Generate(subjectID string, purpose TokenPurpose, ttl time.Duration) (*LifecycleToken, error) {
	if ttl <= 0 {
		return nil, errors.New("auth: lifecycle token ttl must be positive")
	}

	buf := make([]byte, lifecycleTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	return &LifecycleToken{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		SubjectID: subjectID,
		Purpose:   purpose,
		ExpiresAt: m.clock.Now().Add(ttl),
	}, nil
}

// Validate matches a presented value against the stored token and returns the
// subject id. The caller must clear the stored token immediately after
// success (via the store's atomic consume); the manager cannot enforce this
// itself. A token is already expired at its own expiresAt instant.
func (m *LifecycleTokenManager) Validate(presented string, stored *LifecycleToken) (string, error) {
	if stored == nil || presented == "" {
		return "", ErrTokenNotFound
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored.Value)) != 1 {
		return "", ErrTokenNotFound
	}
	if !m.clock.Now().Before(stored.ExpiresAt) {
		return "", ErrTokenExpired
	}
	return stored.SubjectID, nil
}
