package domain

import (
	"encoding/json"
	"time"
)

// TokenTypeRefresh is the only token kind persisted; access tokens are stateless.
const TokenTypeRefresh = "REFRESH"

// Revocation reasons recorded on refresh tokens.
const (
	ReasonRefreshed      = "refreshed"
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonPasswordChange = "password_change"
	ReasonRevokedByUser  = "revoked_by_user"
)

// DeviceInfo is optional client metadata captured at login. It is never validated.
type DeviceInfo struct {
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	Device    json.RawMessage `json:"device,omitempty"`
}

// RefreshToken is a persisted session. Only the hash of the bearer token is stored.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string
	TokenType     string
	Device        DeviceInfo
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// Valid reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
