package repository

import (
	"context"

	"swadharma/backend/internal/notification/domain"
)

// Repository persists notifications.
type Repository interface {
	// Create assigns the id and creation time when unset.
	Create(ctx context.Context, n *domain.Notification) error
	// ListByUser returns the newest notifications first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkRead is idempotent. It reports false when userID owns no notification with that id.
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
