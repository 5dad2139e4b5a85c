package model

import (
	"strings"
	"time"
)

// Urgency is how quickly the property owner needs the work done.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency normalizes a stored urgency value. Unknown values map to medium.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyEmergency:
		return UrgencyEmergency
	default:
		return UrgencyMedium
	}
}

// IsUrgent reports whether responsiveness should be weighted more heavily.
func (u Urgency) IsUrgent() bool {
	return u == UrgencyHigh || u == UrgencyEmergency
}

// ServiceRequest is a property owner's request for service.
type ServiceRequest struct {
	ID               string    `json:"id" yaml:"id"`
	ServiceType      string    `json:"service_type" yaml:"service_type"`
	PropertyLocation string    `json:"property_location" yaml:"property_location"`
	ZipCode          string    `json:"zip_code" yaml:"zip_code"`
	Urgency          Urgency   `json:"urgency" yaml:"urgency"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
}

// MatchStatus is the lifecycle state of a request-vendor match.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusIntroSent  MatchStatus = "intro_sent"
	MatchStatusAccepted   MatchStatus = "accepted"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusDeclined   MatchStatus = "declined"
	MatchStatusNoShow     MatchStatus = "no_show"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// PendingMatchStatuses are the states that count toward a vendor's workload.
var PendingMatchStatuses = []MatchStatus{
	MatchStatusPending,
	MatchStatusIntroSent,
	MatchStatusAccepted,
	MatchStatusInProgress,
}

// Match links a service request to a vendor.
type Match struct {
	ID                  string      `json:"id" yaml:"id"`
	RequestID           string      `json:"request_id" yaml:"request_id"`
	VendorID            string      `json:"vendor_id" yaml:"vendor_id"`
	Status              MatchStatus `json:"status" yaml:"status"`
	ResponseTimeMinutes *int        `json:"response_time_minutes,omitempty" yaml:"response_time_minutes"`
	AcceptedAt          *time.Time  `json:"accepted_at,omitempty" yaml:"accepted_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty" yaml:"completed_at"`
	NoShow              bool        `json:"no_show" yaml:"no_show"`
	DeclinedAfterAccept bool        `json:"declined_after_accept" yaml:"declined_after_accept"`
	CreatedAt           time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" yaml:"updated_at"`
}
