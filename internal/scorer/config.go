// Package scorer computes vendor performance scores (0-100) from review and
// job history, and maps scores to display tiers.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/config"
)

// weightTolerance is the allowed deviation of the weight sum from 1.0.
const weightTolerance = 0.001

// DefaultConfig returns a config.ScoringConfig with sensible defaults.
// Weights sum to 1.0.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Weights: config.ScoringWeights{
			Review:     0.45,
			Completion: 0.20,
			Acceptance: 0.10,
			Volume:     0.10,
			Recency:    0.15,
		},
		Review: config.ReviewConfig{
			MinReviewsForFullWeight: 5,
			HalfLifeDays:            180,
			NeutralScore:            50,
			SubRatingWeight:         0.5,
		},
		VolumeScale:       10,
		RecencyWindowDays: 180,
		Penalties: config.PenaltyConfig{
			NoShow:             10,
			DeclineAfterAccept: 5,
			OneStar:            2,
			Max:                60,
		},
	}
}

// WeightSum returns the sum of all component weights.
func WeightSum(w config.ScoringWeights) float64 {
	return w.Review + w.Completion + w.Acceptance + w.Volume + w.Recency
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"review":     c.Weights.Review,
		"completion": c.Weights.Completion,
		"acceptance": c.Weights.Acceptance,
		"volume":     c.Weights.Volume,
		"recency":    c.Weights.Recency,
	}
	for name, w := range weights {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", name))
		}
	}
	if sum := WeightSum(c.Weights); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.4f", sum))
	}

	if c.Review.MinReviewsForFullWeight < 1 {
		errs = append(errs, "review.min_reviews_for_full_weight must be >= 1")
	}
	if c.Review.HalfLifeDays <= 0 {
		errs = append(errs, "review.half_life_days must be > 0")
	}
	if c.Review.NeutralScore < 0 || c.Review.NeutralScore > 100 {
		errs = append(errs, "review.neutral_score must be between 0 and 100")
	}
	if c.Review.SubRatingWeight < 0 || c.Review.SubRatingWeight > 1 {
		errs = append(errs, "review.sub_rating_weight must be between 0 and 1")
	}
	if c.VolumeScale <= 0 {
		errs = append(errs, "volume_scale must be > 0")
	}
	if c.RecencyWindowDays <= 0 {
		errs = append(errs, "recency_window_days must be > 0")
	}
	if c.Penalties.NoShow < 0 || c.Penalties.DeclineAfterAccept < 0 || c.Penalties.OneStar < 0 {
		errs = append(errs, "penalty points must be >= 0")
	}
	if c.Penalties.Max <= 0 || c.Penalties.Max > 100 {
		errs = append(errs, "penalties.max must be > 0 and <= 100")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
