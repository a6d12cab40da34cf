package repository

import (
	"context"
	"errors"

	"swadharma/backend/internal/household/domain"
)

var (
	// ErrAlreadyHead is returned when a write would give an account a second active HEAD membership.
	ErrAlreadyHead = errors.New("household: account already heads a household")
	// ErrInviteNotPending is returned when an invite was already accepted or declined.
	ErrInviteNotPending = errors.New("household: invite is not pending")
	// ErrNotMember is returned when the expected active membership does not exist.
	ErrNotMember = errors.New("household: not an active member")
)

// Repository persists households, memberships, invites and addresses.
// Lookups return nil, nil when no row matches.
type Repository interface {
	// Create inserts the household, the creator's HEAD membership and the optional primary address atomically.
	Create(ctx context.Context, headUserID, name string, addr *domain.Address) (*domain.Household, error)
	// GetByID and GetByUserID load active members and addresses.
	GetByID(ctx context.Context, id string) (*domain.Household, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Household, error)
	IsUserHead(ctx context.Context, userID string) (bool, error)
	UpdateName(ctx context.Context, id, name string) error

	AddMember(ctx context.Context, householdID, userID string, role domain.Role, invitedBy string) error
	UpdateMemberRole(ctx context.Context, householdID, userID string, role domain.Role) error
	// RemoveMember soft-deletes the membership with status REMOVED or LEFT.
	RemoveMember(ctx context.Context, householdID, userID string, status domain.Status) error
	// TransferHead repoints the household head, demotes the old HEAD to ADULT and promotes
	// newHeadID, all in one transaction.
	TransferHead(ctx context.Context, householdID, newHeadID string) error

	CreateInvite(ctx context.Context, inv *domain.Invite) error
	GetInviteByToken(ctx context.Context, token string) (*domain.Invite, error)
	// AcceptInvite marks the invite ACCEPTED and adds the member in one transaction.
	AcceptInvite(ctx context.Context, token, userID string) (*domain.Invite, error)
	DeclineInvite(ctx context.Context, token string) error
	// ListPendingInvites returns PENDING invites whose expiry is in the future.
	ListPendingInvites(ctx context.Context, householdID string) ([]*domain.Invite, error)
}
