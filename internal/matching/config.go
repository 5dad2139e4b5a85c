// Package matching ranks a pool of candidate vendors against one service
// request. Each vendor's performance score is combined with request-specific
// fit factors into a match score with reasons, warnings and a recommendation.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/config"
)

const weightTolerance = 0.001

// DefaultConfig returns the default matching configuration. Both weight sets
// sum to 1.0.
func DefaultConfig() config.MatchingConfig {
	return config.MatchingConfig{
		Weights: config.MatchWeights{
			Performance:    0.40,
			ServiceType:    0.15,
			Location:       0.20,
			Workload:       0.10,
			Responsiveness: 0.15,
		},
		UrgentWeights: config.MatchWeights{
			Performance:    0.35,
			ServiceType:    0.15,
			Location:       0.15,
			Workload:       0.10,
			Responsiveness: 0.25,
		},
		Location: config.LocationScores{
			Exact:   100,
			Prefix:  75,
			State:   60,
			Unknown: 50,
		},
		NeutralScore:              50,
		BusyThreshold:             5,
		OverloadThreshold:         10,
		ResponseTargetHours:       48,
		UrgentResponseTargetHours: 24,
		SlowResponseHours:         12,
		ScoringVersion:            "2.0",
	}
}

// WeightSum returns the sum of the factor weights.
func WeightSum(w config.MatchWeights) float64 {
	return w.Performance + w.ServiceType + w.Location + w.Workload + w.Responsiveness
}

// ValidateConfig checks that a MatchingConfig is internally consistent.
func ValidateConfig(c config.MatchingConfig) error {
	var errs []string

	errs = append(errs, validateWeights("weights", c.Weights)...)
	errs = append(errs, validateWeights("urgent_weights", c.UrgentWeights)...)

	loc := c.Location
	for _, s := range []struct {
		name string
		v    float64
	}{{"exact", loc.Exact}, {"prefix", loc.Prefix}, {"state", loc.State}, {"unknown", loc.Unknown}} {
		if s.v < 0 || s.v > 100 {
			errs = append(errs, fmt.Sprintf("location.%s must be between 0 and 100", s.name))
		}
	}
	if loc.Prefix <= 0 || loc.State <= 0 {
		errs = append(errs, "location.prefix and location.state must be > 0")
	}
	if loc.Exact < loc.Prefix || loc.Prefix < loc.State {
		errs = append(errs, "location scores must satisfy exact >= prefix >= state")
	}

	if c.NeutralScore < 0 || c.NeutralScore > 100 {
		errs = append(errs, "neutral_score must be between 0 and 100")
	}
	if c.BusyThreshold < 1 {
		errs = append(errs, "busy_threshold must be >= 1")
	}
	if c.OverloadThreshold < c.BusyThreshold {
		errs = append(errs, "overload_threshold must be >= busy_threshold")
	}
	if c.ResponseTargetHours <= 1 || c.UrgentResponseTargetHours <= 1 {
		errs = append(errs, "response target hours must be > 1")
	}
	if c.SlowResponseHours <= 0 {
		errs = append(errs, "slow_response_hours must be > 0")
	}
	if c.ScoringVersion == "" {
		errs = append(errs, "scoring_version is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("matching: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWeights(prefix string, w config.MatchWeights) []string {
	var errs []string
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"performance", w.Performance},
		{"service_type", w.ServiceType},
		{"location", w.Location},
		{"workload", w.Workload},
		{"responsiveness", w.Responsiveness},
	} {
		if f.v < 0 || math.IsNaN(f.v) {
			errs = append(errs, fmt.Sprintf("%s.%s must be >= 0", prefix, f.name))
		}
	}
	if sum := WeightSum(w); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("%s should sum to 1.0, got %.4f", prefix, sum))
	}
	return errs
}
