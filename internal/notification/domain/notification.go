package domain

import "time"

// Type classifies a notification for the client.
type Type string

const (
	TypeServiceRequestNew       Type = "SERVICE_REQUEST_NEW"
	TypeServiceRequestAccepted  Type = "SERVICE_REQUEST_ACCEPTED"
	TypeServiceRequestCompleted Type = "SERVICE_REQUEST_COMPLETED"
)

// Notification is an in-app message for one account. ReferenceID points at the entity it is about.
type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Type        Type       `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	ReferenceID string     `json:"referenceId,omitempty"`
	IsRead      bool       `json:"isRead"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}
