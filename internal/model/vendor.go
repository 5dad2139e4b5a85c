package model

import "time"

// VendorStatus represents where a vendor is in the onboarding lifecycle.
type VendorStatus string

const (
	VendorStatusPending  VendorStatus = "pending"
	VendorStatusActive   VendorStatus = "active"
	VendorStatusInactive VendorStatus = "inactive"
	VendorStatusDeclined VendorStatus = "declined"
)

// Vendor is a service vendor as stored by the platform.
type Vendor struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	CompanyName     string       `json:"company_name" yaml:"company_name"`
	Email           string       `json:"email,omitempty" yaml:"email"`
	Phone           string       `json:"phone,omitempty" yaml:"phone"`
	Status          VendorStatus `json:"status" yaml:"status"`
	ServiceTypes    []string     `json:"service_types" yaml:"service_types"`
	ServiceAreas    []string     `json:"service_areas" yaml:"service_areas"` // "19103", "prefix:191", "state:PA"
	Licensed        bool         `json:"licensed" yaml:"licensed"`
	Insured         bool         `json:"insured" yaml:"insured"`
	YearsInBusiness *float64     `json:"years_in_business,omitempty" yaml:"years_in_business"`
	AdminAdjustment *float64     `json:"admin_adjustment,omitempty" yaml:"admin_adjustment"`
	VettingScore    *float64     `json:"vetting_score,omitempty" yaml:"vetting_score"`
	CreatedAt       time.Time    `json:"created_at" yaml:"created_at"`
}

// OffersService reports whether the vendor lists serviceType among its services.
func (v *Vendor) OffersService(serviceType string) bool {
	for _, s := range v.ServiceTypes {
		if s == serviceType {
			return true
		}
	}
	return false
}

// JobStats aggregates a vendor's match history.
type JobStats struct {
	TotalMatches        int        `json:"total_matches"`
	AcceptedJobs        int        `json:"accepted_jobs"`
	CompletedJobs       int        `json:"completed_jobs"`
	NoShows             int        `json:"no_shows"`
	DeclinesAfterAccept int        `json:"declines_after_accept"`
	PendingJobs         int        `json:"pending_jobs"`
	LastActivity        *time.Time `json:"last_activity,omitempty"`
}

// VendorMetrics is the read-only snapshot the performance calculator scores.
// Counts may be inconsistent (completed > accepted) or negative when callers
// pass bad data; the calculator clamps instead of failing.
type VendorMetrics struct {
	VendorID            string          `json:"vendor_id"`
	Reviews             []Review        `json:"reviews"`
	TotalMatches        int             `json:"total_matches"`
	AcceptedJobs        int             `json:"accepted_jobs"`
	CompletedJobs       int             `json:"completed_jobs"`
	NoShows             int             `json:"no_shows"`
	DeclinesAfterAccept int             `json:"declines_after_accept"`
	ResponseTimes       []time.Duration `json:"response_times"`
	VettingScore        *float64        `json:"vetting_score"`
	LastActivityDate    *time.Time      `json:"last_activity_date"`
}

// HasHistory reports whether the vendor has any reviews or match history.
func (m *VendorMetrics) HasHistory() bool {
	return len(m.Reviews) > 0 || m.TotalMatches > 0
}

// NewVendorMetrics assembles a metrics snapshot from stored rows.
func NewVendorMetrics(v *Vendor, reviews []Review, stats JobStats, responseTimes []time.Duration) VendorMetrics {
	return VendorMetrics{
		VendorID:            v.ID,
		Reviews:             reviews,
		TotalMatches:        stats.TotalMatches,
		AcceptedJobs:        stats.AcceptedJobs,
		CompletedJobs:       stats.CompletedJobs,
		NoShows:             stats.NoShows,
		DeclinesAfterAccept: stats.DeclinesAfterAccept,
		ResponseTimes:       responseTimes,
		VettingScore:        v.VettingScore,
		LastActivityDate:    stats.LastActivity,
	}
}
