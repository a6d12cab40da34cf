package domain

import (
	"errors"
	"time"
)

// Role is the account-level role.
type Role string

const (
	RoleMember   Role = "MEMBER"
	RoleProvider Role = "PROVIDER"
	RoleAdmin    Role = "ADMIN"
)

// Status is the account lifecycle state. PENDING becomes ACTIVE when either contact is verified.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// User is an account. PasswordHash and lockout bookkeeping are never serialized.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	PasswordHash        string     `json:"-"`
	Role                Role       `json:"role"`
	Status              Status     `json:"status"`
	EmailVerified       bool       `json:"emailVerified"`
	PhoneVerified       bool       `json:"phoneVerified"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	PasswordChangedAt   *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	Profile             *Profile   `json:"profile,omitempty"`
}

// Validate checks the invariants required before persistence.
func (u *User) Validate() error {
	if u.Email == "" && u.Phone == "" {
		return errors.New("email or phone is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	switch u.Role {
	case RoleMember, RoleProvider, RoleAdmin:
	case "":
		u.Role = RoleMember
	default:
		return errors.New("invalid role")
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	return nil
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// PreferredChannel is "email" when an email is set, otherwise "phone".
func (u *User) PreferredChannel() string {
	if u.Email != "" {
		return "email"
	}
	return "phone"
}

// Contact returns the address used for the preferred channel.
func (u *User) Contact() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

// DisplayName returns the best available human name for notifications and invites.
func (u *User) DisplayName() string {
	if u.Profile != nil {
		if u.Profile.DisplayName != "" {
			return u.Profile.DisplayName
		}
		if u.Profile.FullName != "" {
			return u.Profile.FullName
		}
	}
	return u.Contact()
}
