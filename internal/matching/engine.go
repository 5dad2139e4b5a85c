package matching

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/geo"
	"github.com/sells-group/vendor-match/internal/scorer"
	"github.com/sells-group/vendor-match/internal/vetting"
)

// lowCompletionRate and minAcceptedForCompletionWarning gate the low
// completion warning.
const (
	lowCompletionRate               = 0.70
	minAcceptedForCompletionWarning = 3
)

// Engine scores vendor pools against requests. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	perf *scorer.Calculator
	cfg  config.MatchingConfig
}

// NewEngine validates both configurations and returns an Engine.
func NewEngine(scoring config.ScoringConfig, matching config.MatchingConfig) (*Engine, error) {
	perf, err := scorer.NewCalculator(scoring)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(matching); err != nil {
		return nil, err
	}
	return &Engine{perf: perf, cfg: matching}, nil
}

// Scorer returns the performance calculator the engine uses.
func (e *Engine) Scorer() *scorer.Calculator {
	return e.perf
}

// CalculateMatchScores scores every vendor in the pool against mctx as of now
// and splits them into recommended suggestions and other vendors, both sorted
// by total score descending with ties broken by vendor ID. An empty pool yields
// empty slices and zero meta.
func (e *Engine) CalculateMatchScores(vendors []VendorMatchData, mctx MatchingContext, now time.Time) Result {
	res := Result{
		Suggestions:  []VendorWithMatchScore{},
		OtherVendors: []VendorWithMatchScore{},
		Meta:         Meta{ScoringVersion: e.cfg.ScoringVersion},
	}
	if len(vendors) == 0 {
		return res
	}

	loc := geo.ResolveLocation(mctx.ZipCode, mctx.PropertyLocation)

	scored := make([]VendorWithMatchScore, len(vendors))
	var sum float64
	for i := range vendors {
		scored[i] = e.ScoreVendor(&vendors[i], mctx, loc, now)
		sum += scored[i].MatchScore.TotalScore
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i].MatchScore.TotalScore, scored[j].MatchScore.TotalScore
		if a != b {
			return a > b
		}
		return scored[i].ID < scored[j].ID
	})

	for _, v := range scored {
		if v.MatchScore.Recommended {
			res.Suggestions = append(res.Suggestions, v)
		} else {
			res.OtherVendors = append(res.OtherVendors, v)
		}
	}

	res.Meta.TotalEligible = len(scored)
	res.Meta.TotalRecommended = len(res.Suggestions)
	res.Meta.AverageScore = scorer.Round2(sum / float64(len(scored)))
	return res
}

// ScoreVendor computes one vendor's match score against mctx at the resolved
// location loc.
func (e *Engine) ScoreVendor(v *VendorMatchData, mctx MatchingContext, loc geo.Location, now time.Time) VendorWithMatchScore {
	perf := e.perf.Score(v.Metrics, now)
	hasReviews := len(v.Metrics.Reviews) > 0

	weights := e.cfg.Weights
	if mctx.Urgency.IsUrgent() {
		weights = e.cfg.UrgentWeights
	}

	var warnings []MatchWarning
	warn := func(sev Severity, format string, args ...any) {
		warnings = append(warnings, MatchWarning{Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	avgResponse := responseHours(v)

	factors := []MatchFactor{
		e.performanceFactor(v, perf, weights.Performance),
		e.serviceTypeFactor(v, mctx, weights.ServiceType, warn),
		e.locationFactor(v, loc, weights.Location, warn),
		e.workloadFactor(v, weights.Workload, warn),
		e.responsivenessFactor(avgResponse, mctx, weights.Responsiveness, warn),
	}
	e.historyWarnings(v, warn)

	var total float64
	for _, f := range factors {
		total += f.Score * f.Weight
	}
	total = scorer.Round2(scorer.Clamp(total, 0, 100))

	ms := MatchScore{
		TotalScore: total,
		Confidence: e.confidence(v, avgResponse),
		Factors:    factors,
		Warnings:   warnings,
	}
	if ms.Warnings == nil {
		ms.Warnings = []MatchWarning{}
	}
	// The displayed performance tier gates the recommendation, not the match total.
	tier := scorer.GetScoreTier(perf.Score, hasReviews)
	ms.Recommended = tier.Recommendable() && !ms.HasHighWarning()

	return VendorWithMatchScore{
		ID:                   v.Vendor.ID,
		Name:                 v.Vendor.Name,
		CompanyName:          v.Vendor.CompanyName,
		Email:                v.Vendor.Email,
		Phone:                v.Vendor.Phone,
		ServiceTypes:         nonNil(v.Vendor.ServiceTypes),
		ServiceAreas:         nonNil(v.Vendor.ServiceAreas),
		ServiceAreaLabels:    AreaLabels(v.Vendor.ServiceAreas),
		VettingScore:         v.Vendor.VettingScore,
		ReviewCount:          len(v.Metrics.Reviews),
		PendingJobs:          max(v.PendingJobsCount, 0),
		AvgResponseTimeHours: avgResponse,
		Performance:          perf,
		Tier:                 tier,
		TierLabel:            tier.Label(),
		MatchScore:           ms,
	}
}

func (e *Engine) performanceFactor(v *VendorMatchData, perf scorer.Result, weight float64) MatchFactor {
	f := MatchFactor{Name: FactorPerformance, Weight: weight, Score: perf.Score, Icon: "star"}

	m := &v.Metrics
	n := len(m.Reviews)
	switch {
	case n > 0:
		f.Reason = fmt.Sprintf("Performance score %.0f from %d %s", perf.Score, n, plural(n, "review", "reviews"))
	case m.HasHistory():
		f.Reason = fmt.Sprintf("Performance score %.0f from %d %s, no reviews yet", perf.Score, m.TotalMatches, plural(m.TotalMatches, "job", "jobs"))
	case validScore(m.VettingScore) || validScore(v.Vendor.VettingScore):
		vs := m.VettingScore
		if !validScore(vs) {
			vs = v.Vendor.VettingScore
		}
		f.Score = scorer.Round2(scorer.Clamp(*vs/vetting.MaxScore*100, 0, 100))
		f.Reason = fmt.Sprintf("New vendor, vetting score %.0f/%d", *vs, vetting.MaxScore)
	default:
		f.Reason = "New vendor with no track record"
	}
	return f
}

func (e *Engine) serviceTypeFactor(v *VendorMatchData, mctx MatchingContext, weight float64, warn warnFunc) MatchFactor {
	f := MatchFactor{Name: FactorServiceType, Weight: weight, Icon: "wrench"}
	switch {
	case mctx.ServiceType == "":
		f.Score = e.cfg.NeutralScore
		f.Reason = "Request has no service type"
	case v.Vendor.OffersService(mctx.ServiceType):
		f.Score = 100
		f.Reason = fmt.Sprintf("Offers %s", mctx.ServiceType)
	default:
		f.Score = 0
		f.Reason = fmt.Sprintf("Does not list %s among its services", mctx.ServiceType)
		warn(SeverityHigh, "Does not offer %s", mctx.ServiceType)
	}
	return f
}

func (e *Engine) locationFactor(v *VendorMatchData, loc geo.Location, weight float64, warn warnFunc) MatchFactor {
	f := MatchFactor{Name: FactorLocation, Weight: weight, Icon: "map-pin"}
	scores := e.cfg.Location

	areas := ParseServiceAreas(v.Vendor.ServiceAreas)
	if len(areas) == 0 {
		f.Score = scores.Unknown
		f.Reason = "No service area on file"
		warn(SeverityLow, "No service area on file")
		return f
	}
	if !loc.Known() {
		f.Score = scores.Unknown
		f.Reason = "Request location unknown"
		warn(SeverityLow, "Request location unknown")
		return f
	}

	best, ok := BestArea(areas, loc)
	if !ok {
		f.Score = 0
		f.Reason = "Outside listed service areas"
		warn(SeverityHigh, "Request location %s is outside the vendor's service areas", describeLocation(loc))
		return f
	}

	switch best.Kind {
	case AreaExact:
		f.Score = scores.Exact
		f.Reason = "Matches your service area exactly"
	case AreaPrefix:
		f.Score = scores.Prefix
		f.Reason = fmt.Sprintf("Partial match: serves ZIP prefix %s", best.Value)
	case AreaState:
		f.Score = scores.State
		f.Reason = fmt.Sprintf("Serves all of %s", geo.StateName(best.Value))
	}
	return f
}

func (e *Engine) workloadFactor(v *VendorMatchData, weight float64, warn warnFunc) MatchFactor {
	f := MatchFactor{Name: FactorWorkload, Weight: weight, Icon: "briefcase"}
	pending := max(v.PendingJobsCount, 0)

	f.Score = scorer.Round2(100 * math.Max(0, 1-float64(pending)/float64(e.cfg.OverloadThreshold)))
	if pending == 0 {
		f.Reason = "No pending jobs"
	} else {
		f.Reason = fmt.Sprintf("Currently has %d pending %s", pending, plural(pending, "job", "jobs"))
	}

	switch {
	case pending >= e.cfg.OverloadThreshold:
		warn(SeverityHigh, "Currently has %d pending jobs (overloaded)", pending)
	case pending >= e.cfg.BusyThreshold:
		warn(SeverityMedium, "Currently has %d pending jobs", pending)
	}
	return f
}

func (e *Engine) responsivenessFactor(avg *float64, mctx MatchingContext, weight float64, warn warnFunc) MatchFactor {
	f := MatchFactor{Name: FactorResponsiveness, Weight: weight, Icon: "clock"}
	if avg == nil {
		f.Score = e.cfg.NeutralScore
		f.Reason = "No response-time history"
		return f
	}

	target := e.cfg.ResponseTargetHours
	if mctx.Urgency.IsUrgent() {
		target = e.cfg.UrgentResponseTargetHours
	}

	// 100 at one hour or faster, falling linearly to 0 at the target.
	hours := math.Max(*avg, 0)
	f.Score = scorer.Round2(100 * scorer.Clamp(1-(hours-1)/(target-1), 0, 1))
	f.Reason = fmt.Sprintf("Average response time: %.1fh", hours)

	if mctx.Urgency.IsUrgent() && hours > e.cfg.SlowResponseHours {
		warn(SeverityMedium, "Slow average response (%.1fh) for an urgent request", hours)
	}
	return f
}

func (e *Engine) historyWarnings(v *VendorMatchData, warn warnFunc) {
	m := &v.Metrics
	if len(m.Reviews) == 0 {
		warn(SeverityLow, "No reviews yet, low confidence")
	}
	if m.NoShows > 0 {
		warn(SeverityMedium, "%d %s on record", m.NoShows, plural(m.NoShows, "no-show", "no-shows"))
	}
	if m.AcceptedJobs >= minAcceptedForCompletionWarning {
		rate := float64(max(m.CompletedJobs, 0)) / float64(m.AcceptedJobs)
		if rate < lowCompletionRate {
			warn(SeverityMedium, "Low completion rate (%.0f%%)", rate*100)
		}
	}
}

// confidence counts the factors backed by real data: a full review sample
// counts twice, any reviews once, plus response-time and job history.
func (e *Engine) confidence(v *VendorMatchData, avgResponse *float64) ConfidenceLevel {
	points := 0
	switch n := len(v.Metrics.Reviews); {
	case n >= e.perf.Config().Review.MinReviewsForFullWeight:
		points += 2
	case n > 0:
		points++
	}
	if avgResponse != nil {
		points++
	}
	if v.Metrics.TotalMatches > 0 {
		points++
	}

	switch {
	case points >= 3:
		return ConfidenceHigh
	case points == 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

type warnFunc func(sev Severity, format string, args ...any)

// responseHours returns the vendor's average response time, falling back to
// the mean of its recorded response times.
func responseHours(v *VendorMatchData) *float64 {
	if v.AvgResponseTimeHours != nil && !math.IsNaN(*v.AvgResponseTimeHours) && !math.IsInf(*v.AvgResponseTimeHours, 0) {
		h := *v.AvgResponseTimeHours
		return &h
	}
	if len(v.Metrics.ResponseTimes) == 0 {
		return nil
	}
	var total time.Duration
	for _, d := range v.Metrics.ResponseTimes {
		total += d
	}
	h := total.Hours() / float64(len(v.Metrics.ResponseTimes))
	return &h
}

func describeLocation(loc geo.Location) string {
	if loc.Zip != "" {
		return loc.Zip
	}
	return loc.State
}

func validScore(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
