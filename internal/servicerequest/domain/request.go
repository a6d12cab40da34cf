package domain

import "time"

// ServiceType is a bookable devotional service.
type ServiceType string

const (
	ServiceHomamYagam    ServiceType = "HomamYagam"
	ServiceHomePooja     ServiceType = "HomePooja"
	ServicePoojaSamagri  ServiceType = "PoojaSamagri"
	ServiceFamilyConnect ServiceType = "FamilyConnect"
)

var labels = map[ServiceType]string{
	ServiceHomamYagam:    "Homam & Yagam",
	ServiceHomePooja:     "Home Pooja",
	ServicePoojaSamagri:  "Pooja Samagri",
	ServiceFamilyConnect: "Family Connect",
}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	_, ok := labels[t]
	return ok
}

// Label is the display name of t.
func (t ServiceType) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// Status moves PENDING -> ACCEPTED -> COMPLETED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusCompleted Status = "COMPLETED"
)

// Request is a member's booking. ProviderID is set once a provider accepts.
type Request struct {
	ID            string      `json:"id"`
	MemberID      string      `json:"memberId"`
	MemberName    string      `json:"memberName,omitempty"`
	ProviderID    string      `json:"providerId,omitempty"`
	ProviderName  string      `json:"providerName,omitempty"`
	ServiceType   ServiceType `json:"serviceType"`
	ServiceLabel  string      `json:"serviceLabel"`
	Status        Status      `json:"status"`
	PreferredDate string      `json:"preferredDate,omitempty"`
	PreferredTime string      `json:"preferredTime,omitempty"`
	Location      string      `json:"location,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	AcceptedAt    *time.Time  `json:"acceptedAt,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}
