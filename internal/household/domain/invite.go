package domain

import "time"

// InviteStatus is the lifecycle of an invite. Lapsed invites keep PENDING in storage
// and are treated as expired by comparing ExpiresAt at read time.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteDeclined InviteStatus = "DECLINED"
	InviteExpired  InviteStatus = "EXPIRED"
)

// InviteTTL is how long an invite stays acceptable.
const InviteTTL = 7 * 24 * time.Hour

// Invite offers a contact a role in a household. The token is the lookup key.
type Invite struct {
	ID             string       `json:"id"`
	HouseholdID    string       `json:"householdId"`
	InviterID      string       `json:"inviterId"`
	InviteeContact string       `json:"inviteeContact"`
	InviteeUserID  string       `json:"inviteeUserId,omitempty"`
	Role           Role         `json:"role"`
	Token          string       `json:"token"`
	Status         InviteStatus `json:"status"`
	ExpiresAt      time.Time    `json:"expiresAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	RespondedAt    *time.Time   `json:"respondedAt,omitempty"`
}

// Expired reports whether the invite has lapsed at now.
func (i *Invite) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
