package domain

import "time"

// UserStatus represents account lifecycle states. New accounts stay pending
// until their email verification token is consumed.
type UserStatus string

const (
	UserStatusPending UserStatus = "PENDING_VERIFICATION"
	UserStatusActive  UserStatus = "ACTIVE"
)

// User is the domain model for API accounts.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
