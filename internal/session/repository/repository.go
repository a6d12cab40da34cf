package repository

import (
	"context"
	"time"

	"swadharma/backend/internal/session/domain"
)

// Repository persists refresh-token sessions. Raw tokens are hashed before they reach storage.
type Repository interface {
	Store(ctx context.Context, userID, rawToken string, device domain.DeviceInfo) (*domain.RefreshToken, error)
	// Validate returns the owning user id when the token is known, unrevoked and unexpired.
	Validate(ctx context.Context, rawToken string) (userID string, ok bool, err error)
	// Revoke is a no-op for unknown or already revoked tokens.
	Revoke(ctx context.Context, rawToken, reason string) error
	// RevokeByID revokes one of userID's sessions. ok is false when no active session matched.
	RevokeByID(ctx context.Context, userID, id, reason string) (ok bool, err error)
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
	// RevokeIssuedBefore revokes active sessions issued strictly before cutoff.
	RevokeIssuedBefore(ctx context.Context, userID string, cutoff time.Time, reason string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*domain.RefreshToken, error)
}
