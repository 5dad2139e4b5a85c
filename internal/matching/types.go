package matching

import (
	"github.com/sells-group/vendor-match/internal/model"
	"github.com/sells-group/vendor-match/internal/scorer"
)

// Severity grades a match warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConfidenceLevel says how much real data backs a match score.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Factor names.
const (
	FactorPerformance    = "performance"
	FactorServiceType    = "service_type"
	FactorLocation       = "location"
	FactorWorkload       = "workload"
	FactorResponsiveness = "responsiveness"
)

// MatchFactor is one weighted, independently reasoned input to a match score.
type MatchFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	Icon   string  `json:"icon"`
}

// MatchWarning flags something the requester should know about a vendor.
type MatchWarning struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// MatchScore is a vendor's score against one request.
type MatchScore struct {
	TotalScore  float64         `json:"totalScore"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Factors     []MatchFactor   `json:"factors"`
	Warnings    []MatchWarning  `json:"warnings"`
	Recommended bool            `json:"recommended"`
}

// HasHighWarning reports whether any warning is high severity.
func (s *MatchScore) HasHighWarning() bool {
	for _, w := range s.Warnings {
		if w.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// MatchingContext is the request-side input of one scoring pass.
type MatchingContext struct {
	RequestID        string
	ServiceType      string
	ZipCode          string
	PropertyLocation string
	Urgency          model.Urgency
}

// ContextFromRequest builds a MatchingContext from a stored request.
func ContextFromRequest(r *model.ServiceRequest) MatchingContext {
	return MatchingContext{
		RequestID:        r.ID,
		ServiceType:      r.ServiceType,
		ZipCode:          r.ZipCode,
		PropertyLocation: r.PropertyLocation,
		Urgency:          model.ParseUrgency(string(r.Urgency)),
	}
}

// VendorMatchData is a candidate vendor with its metrics and current load.
type VendorMatchData struct {
	Vendor               model.Vendor
	Metrics              model.VendorMetrics
	PendingJobsCount     int
	AvgResponseTimeHours *float64
}

// VendorWithMatchScore is one ranked vendor in a suggestions result.
type VendorWithMatchScore struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	CompanyName          string        `json:"companyName"`
	Email                string        `json:"email,omitempty"`
	Phone                string        `json:"phone,omitempty"`
	ServiceTypes         []string      `json:"serviceTypes"`
	ServiceAreas         []string      `json:"serviceAreas"`
	ServiceAreaLabels    []string      `json:"serviceAreaLabels"`
	VettingScore         *float64      `json:"vettingScore"`
	ReviewCount          int           `json:"reviewCount"`
	PendingJobs          int           `json:"pendingJobs"`
	AvgResponseTimeHours *float64      `json:"avgResponseTimeHours"`
	Performance          scorer.Result `json:"performance"`
	Tier                 scorer.Tier   `json:"tier"`
	TierLabel            string        `json:"tierLabel"`
	MatchScore           MatchScore    `json:"matchScore"`
}

// Meta aggregates a scored pool.
type Meta struct {
	TotalEligible    int     `json:"totalEligible"`
	TotalRecommended int     `json:"totalRecommended"`
	AverageScore     float64 `json:"averageScore"`
	ScoringVersion   string  `json:"scoringVersion"`
}

// Result is the ranked output of one scoring pass. Both slices are non-nil.
type Result struct {
	Suggestions  []VendorWithMatchScore `json:"suggestions"`
	OtherVendors []VendorWithMatchScore `json:"otherVendors"`
	Meta         Meta                   `json:"meta"`
}
