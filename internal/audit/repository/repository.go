package repository

import (
	"context"
	"errors"

	"swadharma/backend/internal/audit/domain"
)

// ErrDuplicate is returned by Create when a record with the same id already exists.
var ErrDuplicate = errors.New("audit log already recorded")

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error)
}
