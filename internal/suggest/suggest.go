// Package suggest answers "given a request id, return ranked vendor
// suggestions". It loads the request and the candidate pool from the store,
// fetches each vendor's history concurrently and hands the result to the
// matching engine.
package suggest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vendor-match/internal/matching"
	"github.com/sells-group/vendor-match/internal/model"
	"github.com/sells-group/vendor-match/internal/scorer"
	"github.com/sells-group/vendor-match/internal/store"
	"github.com/sells-group/vendor-match/internal/vetting"
)

var (
	// ErrRequestNotFound is returned when the service request does not exist.
	ErrRequestNotFound = eris.New("suggest: request not found")
	// ErrVendorNotFound is returned when the vendor does not exist.
	ErrVendorNotFound = eris.New("suggest: vendor not found")
)

// Service runs suggestion and scoring lookups against a store.
type Service struct {
	store   store.Store
	engine  *matching.Engine
	vetting *vetting.Calculator
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for recency calculations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service.
func New(st store.Store, engine *matching.Engine, vet *vetting.Calculator, opts ...Option) *Service {
	s := &Service{
		store:   st,
		engine:  engine,
		vetting: vet,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestSummary is the request echoed back with its suggestions.
type RequestSummary struct {
	ID               string        `json:"id"`
	ServiceType      string        `json:"service_type"`
	PropertyLocation string        `json:"property_location"`
	ZipCode          string        `json:"zip_code"`
	Urgency          model.Urgency `json:"urgency"`
}

// Suggestions is the ranked result for one request.
type Suggestions struct {
	Request RequestSummary `json:"request"`
	matching.Result
}

// Suggest scores every active vendor offering the request's service type.
func (s *Service) Suggest(ctx context.Context, requestID string) (*Suggestions, error) {
	start := time.Now()

	req, err := s.store.GetServiceRequest(ctx, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: get request %s", requestID)
	}
	if req == nil {
		return nil, eris.Wrapf(ErrRequestNotFound, "request %s", requestID)
	}

	var vendors []model.Vendor
	if req.ServiceType == "" {
		vendors, err = s.store.ListActiveVendors(ctx)
	} else {
		vendors, err = s.store.ListActiveVendorsByService(ctx, req.ServiceType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: list vendors for %s", requestID)
	}

	data, err := s.loadMatchData(ctx, vendors)
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: load history for %s", requestID)
	}

	res := s.engine.CalculateMatchScores(data, matching.ContextFromRequest(req), s.now())

	zap.L().Info("scored vendor pool",
		zap.String("component", "suggest"),
		zap.String("request_id", req.ID),
		zap.String("service_type", req.ServiceType),
		zap.Int("eligible", res.Meta.TotalEligible),
		zap.Int("recommended", res.Meta.TotalRecommended),
		zap.Duration("duration", time.Since(start)),
	)

	return &Suggestions{
		Request: RequestSummary{
			ID:               req.ID,
			ServiceType:      req.ServiceType,
			PropertyLocation: req.PropertyLocation,
			ZipCode:          req.ZipCode,
			Urgency:          req.Urgency,
		},
		Result: res,
	}, nil
}

// VendorScore is a vendor's standalone performance and vetting score.
type VendorScore struct {
	VendorID     string            `json:"vendorId"`
	Name         string            `json:"name"`
	CompanyName  string            `json:"companyName"`
	Status       string            `json:"status"`
	Performance  scorer.Result     `json:"performance"`
	Tier         scorer.Tier       `json:"tier"`
	TierLabel    string            `json:"tierLabel"`
	Vetting      vetting.Breakdown `json:"vetting"`
	ReviewCount  int               `json:"reviewCount"`
	Stats        model.JobStats    `json:"stats"`
	VettingStale bool              `json:"vettingStale"`
}

// VendorScore computes the performance score of one vendor regardless of its
// status.
func (s *Service) VendorScore(ctx context.Context, vendorID string) (*VendorScore, error) {
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: get vendor %s", vendorID)
	}
	if v == nil {
		return nil, eris.Wrapf(ErrVendorNotFound, "vendor %s", vendorID)
	}

	data, err := s.loadMatchData(ctx, []model.Vendor{*v})
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: load history for vendor %s", vendorID)
	}
	d := data[0]

	perf := s.engine.Scorer().Score(d.Metrics, s.now())
	tier := scorer.GetScoreTier(perf.Score, len(d.Metrics.Reviews) > 0)
	vet := s.vetting.Calculate(vettingInput(v))

	return &VendorScore{
		VendorID:     v.ID,
		Name:         v.Name,
		CompanyName:  v.CompanyName,
		Status:       string(v.Status),
		Performance:  perf,
		Tier:         tier,
		TierLabel:    tier.Label(),
		Vetting:      vet,
		ReviewCount:  len(d.Metrics.Reviews),
		Stats:        statsOf(d),
		VettingStale: v.VettingScore == nil || *v.VettingScore != vet.TotalScore,
	}, nil
}

// RecomputeVetting recalculates a vendor's vetting score from its stored
// attributes and, when save is set, writes it back.
func (s *Service) RecomputeVetting(ctx context.Context, vendorID string, save bool) (vetting.Breakdown, error) {
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		return vetting.Breakdown{}, eris.Wrapf(err, "suggest: get vendor %s", vendorID)
	}
	if v == nil {
		return vetting.Breakdown{}, eris.Wrapf(ErrVendorNotFound, "vendor %s", vendorID)
	}

	b := s.vetting.Calculate(vettingInput(v))
	if !save {
		return b, nil
	}
	if err := s.store.UpdateVettingScore(ctx, v.ID, b.TotalScore); err != nil {
		return vetting.Breakdown{}, eris.Wrapf(err, "suggest: save vetting score %s", vendorID)
	}
	zap.L().Info("vetting score saved",
		zap.String("component", "suggest"),
		zap.String("vendor_id", v.ID),
		zap.Float64("score", b.TotalScore),
		zap.String("tier", string(b.Tier)),
	)
	return b, nil
}

// loadMatchData fetches reviews, job stats and response times for vendors
// concurrently and assembles one VendorMatchData per vendor, in order.
func (s *Service) loadMatchData(ctx context.Context, vendors []model.Vendor) ([]matching.VendorMatchData, error) {
	if len(vendors) == 0 {
		return nil, nil
	}

	ids := make([]string, len(vendors))
	for i := range vendors {
		ids[i] = vendors[i].ID
	}

	var (
		reviews   map[string][]model.Review
		stats     map[string]model.JobStats
		responses map[string][]time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reviews, err = s.store.ListReviews(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.store.ListJobStats(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.store.ListResponseTimes(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]matching.VendorMatchData, len(vendors))
	for i := range vendors {
		v := &vendors[i]
		st := stats[v.ID]
		out[i] = matching.VendorMatchData{
			Vendor:           *v,
			Metrics:          model.NewVendorMetrics(v, reviews[v.ID], st, responses[v.ID]),
			PendingJobsCount: st.PendingJobs,
		}
	}
	return out, nil
}

func statsOf(d matching.VendorMatchData) model.JobStats {
	m := d.Metrics
	return model.JobStats{
		TotalMatches:        m.TotalMatches,
		AcceptedJobs:        m.AcceptedJobs,
		CompletedJobs:       m.CompletedJobs,
		NoShows:             m.NoShows,
		DeclinesAfterAccept: m.DeclinesAfterAccept,
		PendingJobs:         d.PendingJobsCount,
		LastActivity:        m.LastActivityDate,
	}
}

func vettingInput(v *model.Vendor) vetting.Input {
	return vetting.Input{
		Licensed:        v.Licensed,
		Insured:         v.Insured,
		YearsInBusiness: v.YearsInBusiness,
		AdminAdjustment: v.AdminAdjustment,
	}
}
