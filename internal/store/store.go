// Package store persists vendors, service requests, matches and reviews, and
// supplies the per-vendor history the matching engine scores.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/model"
)

// Store defines the persistence interface for vendor matching. Single-row
// lookups return (nil, nil) when the row does not exist.
type Store interface {
	// Requests
	GetServiceRequest(ctx context.Context, id string) (*model.ServiceRequest, error)
	CreateServiceRequest(ctx context.Context, r *model.ServiceRequest) error

	// Vendors
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	ListActiveVendors(ctx context.Context) ([]model.Vendor, error)
	ListActiveVendorsByService(ctx context.Context, serviceType string) ([]model.Vendor, error)
	UpsertVendor(ctx context.Context, v *model.Vendor) error
	UpdateVettingScore(ctx context.Context, vendorID string, score float64) error

	// History, keyed by vendor ID. Vendors without rows are absent from the map.
	ListReviews(ctx context.Context, vendorIDs []string) (map[string][]model.Review, error)
	ListJobStats(ctx context.Context, vendorIDs []string) (map[string]model.JobStats, error)
	ListResponseTimes(ctx context.Context, vendorIDs []string) (map[string][]time.Duration, error)
	CreateMatch(ctx context.Context, m *model.Match) error
	CreateReview(ctx context.Context, r *model.Review) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// pendingStatuses renders model.PendingMatchStatuses as query arguments.
func pendingStatuses() []string {
	out := make([]string, len(model.PendingMatchStatuses))
	for i, s := range model.PendingMatchStatuses {
		out[i] = string(s)
	}
	return out
}

func marshalList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return b, eris.Wrap(err, "marshal list")
}

func unmarshalList(b []byte) ([]string, error) {
	if len(b) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, eris.Wrap(err, "unmarshal list")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}

func stampRequest(r *model.ServiceRequest) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Urgency = model.ParseUrgency(string(r.Urgency))
}

func stampVendor(v *model.Vendor) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = model.VendorStatusPending
	}
}

// stampMatch fills the ID, timestamps and status of a new match.
func stampMatch(m *model.Match) {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = model.MatchStatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
}

func stampReview(r *model.Review) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}
