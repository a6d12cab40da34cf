package repository

import (
	"context"
	"errors"

	"swadharma/backend/internal/servicerequest/domain"
)

// ErrStateChanged is returned when a transition lost to a concurrent one or the request
// is no longer in the required state.
var ErrStateChanged = errors.New("servicerequest: request state changed")

// Repository persists service requests. Lookups return nil, nil when no row matches.
type Repository interface {
	// Create assigns id, status PENDING and timestamps.
	Create(ctx context.Context, r *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	// ListByMember returns the member's requests, newest first.
	ListByMember(ctx context.Context, memberID string) ([]*domain.Request, error)
	// ListForProvider returns every PENDING request plus the ones providerID accepted, newest first.
	ListForProvider(ctx context.Context, providerID string) ([]*domain.Request, error)
	// Accept moves a PENDING request to ACCEPTED for providerID.
	Accept(ctx context.Context, id, providerID string) (*domain.Request, error)
	// Complete moves providerID's ACCEPTED request to COMPLETED.
	Complete(ctx context.Context, id, providerID string) (*domain.Request, error)
}
