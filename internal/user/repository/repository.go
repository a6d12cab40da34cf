package repository

import (
	"context"
	"errors"
	"time"

	"swadharma/backend/internal/user/domain"
)

var (
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("user: email already registered")
	// ErrDuplicatePhone is returned by Create when the phone is already registered.
	ErrDuplicatePhone = errors.New("user: phone already registered")
)

// NewUser is the input to Create. Password is plaintext and is hashed by the store.
type NewUser struct {
	Email    string
	Phone    string
	Password string
	Role     domain.Role
	Profile  domain.Profile
}

// Lockout is the outcome of a failed login increment.
type Lockout struct {
	Attempts    int
	LockedUntil *time.Time
}

// Repository defines persistence for accounts and profiles.
// Lookups return nil, nil when no row matches.
type Repository interface {
	Create(ctx context.Context, in NewUser) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// GetByIdentifier looks up by email when identifier is email-shaped, otherwise by phone.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	// IncrementFailedAttempts bumps the counter and locks the account once it reaches the threshold.
	IncrementFailedAttempts(ctx context.Context, id string) (Lockout, error)
	// ResetFailedAttempts clears the counter and lock and stamps the last login time.
	ResetFailedAttempts(ctx context.Context, id string) error
	// MarkEmailVerified and MarkPhoneVerified set the flag and promote PENDING to ACTIVE.
	MarkEmailVerified(ctx context.Context, id string) error
	MarkPhoneVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, newPassword string) error
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
	ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}
