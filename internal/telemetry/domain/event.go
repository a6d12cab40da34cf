package domain

import "time"

// Event is a domain event published after a state change. It is serialized as JSON on the events topic.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     string         `json:"userId,omitempty"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	IP         string         `json:"ip,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Resources.
const (
	ResourceAuth           = "auth"
	ResourceUser           = "user"
	ResourceSession        = "session"
	ResourceHousehold      = "household"
	ResourceInvite         = "invite"
	ResourceServiceRequest = "service_request"
)

// Event types.
const (
	TypeRegister        = "register"
	TypeLoginSuccess    = "login_success"
	TypeLoginFailure    = "login_failure"
	TypeAccountLocked   = "account_locked"
	TypeOTPSent         = "otp_sent"
	TypeOTPVerified     = "otp_verified"
	TypeTokenRefreshed  = "token_refreshed"
	TypeLogout          = "logout"
	TypePasswordChanged = "password_changed"
	TypeProfileUpdated  = "profile_updated"
	TypeSessionRevoked  = "session_revoked"

	TypeHouseholdCreated = "household_created"
	TypeHouseholdRenamed = "household_renamed"
	TypeMemberInvited    = "member_invited"
	TypeInviteAccepted   = "invite_accepted"
	TypeInviteDeclined   = "invite_declined"
	TypeMemberRoleUpdate = "member_role_updated"
	TypeMemberRemoved    = "member_removed"
	TypeHeadTransferred  = "head_transferred"
	TypeMemberLeft       = "member_left"

	TypeServiceRequested = "service_request_created"
	TypeServiceAccepted  = "service_request_accepted"
	TypeServiceCompleted = "service_request_completed"
)
