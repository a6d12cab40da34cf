package domain

import (
	"strings"
	"time"
)

// Role is a member's position within one household.
type Role string

const (
	RoleHead  Role = "HEAD"
	RoleAdult Role = "ADULT"
	RoleChild Role = "CHILD"
)

// ParseRole uppercases s and returns the matching Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleHead, RoleAdult, RoleChild:
		return r, true
	}
	return "", false
}

// Status applies to both households and memberships. Removal is always a status change.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRemoved Status = "REMOVED"
	StatusLeft    Status = "LEFT"
)

// Household groups accounts under exactly one head.
type Household struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	HeadUserID string     `json:"headUserId"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Members    []*Member  `json:"members"`
	Addresses  []*Address `json:"addresses"`
}

// Member returns the active membership for userID, or nil.
func (h *Household) Member(userID string) *Member {
	for _, m := range h.Members {
		if m.UserID == userID && m.Status == StatusActive {
			return m
		}
	}
	return nil
}

// Member is an account's membership with a minimal profile projection.
type Member struct {
	ID          string     `json:"id"`
	HouseholdID string     `json:"householdId"`
	UserID      string     `json:"userId"`
	Role        Role       `json:"role"`
	Status      Status     `json:"status"`
	InvitedBy   string     `json:"invitedBy,omitempty"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt,omitempty"`
	FullName    string     `json:"fullName"`
	DisplayName string     `json:"displayName,omitempty"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
}

// AddressType classifies an address.
type AddressType string

const (
	AddressHome   AddressType = "HOME"
	AddressOffice AddressType = "OFFICE"
	AddressTemple AddressType = "TEMPLE"
	AddressOther  AddressType = "OTHER"
)

// ValidAddressType reports whether t is a known address type.
func ValidAddressType(t AddressType) bool {
	switch t {
	case AddressHome, AddressOffice, AddressTemple, AddressOther:
		return true
	}
	return false
}

// Address is a postal address attached to a user or a household.
type Address struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	HouseholdID string      `json:"householdId,omitempty"`
	Type        AddressType `json:"type"`
	Label       string      `json:"label,omitempty"`
	Line1       string      `json:"line1"`
	Line2       string      `json:"line2,omitempty"`
	Landmark    string      `json:"landmark,omitempty"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Pincode     string      `json:"pincode"`
	Country     string      `json:"country"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	IsPrimary   bool        `json:"isPrimary"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
