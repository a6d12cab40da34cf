package repository

import (
	"context"
	"time"

	"swadharma/backend/internal/otp/domain"
)

// Repository persists one-time codes.
type Repository interface {
	// Issue supersedes any unconsumed code for (contact, purpose), stores a new one and returns the plaintext.
	Issue(ctx context.Context, contact string, purpose domain.Purpose, userID string) (code string, expiresAt time.Time, err error)
	// Verify checks code against the newest active code. On success it consumes the code and returns
	// the bound user id. Failures are domain.ErrExpired, domain.ErrMaxAttempts or domain.ErrInvalid.
	Verify(ctx context.Context, contact, code string, purpose domain.Purpose) (userID string, err error)
	// CanResend reports whether the resend cooldown has passed and, if not, how long remains.
	CanResend(ctx context.Context, contact string, purpose domain.Purpose) (allowed bool, retryAfter time.Duration, err error)
}
