package engine

import "context"

// Action names a household operation subject to authorization.
type Action string

const (
	ActionCreate          Action = "create"
	ActionView            Action = "view"
	ActionListInvites     Action = "list_invites"
	ActionUpdateHousehold Action = "update_household"
	ActionInvite          Action = "invite"
	ActionUpdateRole      Action = "update_role"
	ActionRemoveMember    Action = "remove_member"
	ActionTransferHead    Action = "transfer_head"
	ActionLeave           Action = "leave"
)

// Party describes the caller or the target account relative to one household.
type Party struct {
	ID       string `json:"id"`
	IsHead   bool   `json:"is_head"`
	IsMember bool   `json:"is_member"`
	Role     string `json:"role"`
	// HeadsAny is true when the account is the active head of any household.
	HeadsAny bool `json:"heads_any"`
}

// Facts is the policy input. Target and NewRole are set only for actions that use them.
type Facts struct {
	Action  Action `json:"action"`
	Caller  Party  `json:"caller"`
	Target  *Party `json:"target,omitempty"`
	NewRole string `json:"new_role,omitempty"`
}

// Evaluator decides household authorization. Check returns the violated rule code
// (for example "ACCESS_DENIED"), or "" when the action is allowed.
type Evaluator interface {
	Check(ctx context.Context, f Facts) (string, error)
}
