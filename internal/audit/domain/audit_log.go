// Package domain holds the audit trail record.
package domain

import "time"

// AuditLog is one row of an account's activity trail, built from a domain event with the same ID.
// Resource is "kind" or "kind:id"; Metadata is a JSON object or empty.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
