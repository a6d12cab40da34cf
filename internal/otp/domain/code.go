package domain

import (
	"errors"
	"strings"
	"time"
)

// Purpose scopes a one-time code. At most one unconsumed code exists per (contact, purpose).
type Purpose string

const (
	PurposeRegistration  Purpose = "REGISTRATION"
	PurposeLogin         Purpose = "LOGIN"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
	PurposeInvite        Purpose = "INVITE"
)

// ParsePurpose uppercases s and returns the matching Purpose.
func ParsePurpose(s string) (Purpose, bool) {
	p := Purpose(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset, PurposeInvite:
		return p, true
	}
	return "", false
}

// Code is a stored one-time code. The plaintext is never persisted.
type Code struct {
	ID          string
	Contact     string
	Purpose     Purpose
	UserID      string
	CodeHash    string
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	VerifiedAt  *time.Time
}

// Verification failures, in the order they are checked.
var (
	ErrExpired     = errors.New("otp: no active code")
	ErrMaxAttempts = errors.New("otp: maximum attempts exceeded")
	ErrInvalid     = errors.New("otp: code mismatch")
)

// ResendCooldown is the minimum gap between two issuances for the same (contact, purpose).
const ResendCooldown = 30 * time.Second
