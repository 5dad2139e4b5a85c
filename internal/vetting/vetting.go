// Package vetting computes the onboarding baseline score (0-45) for vendors
// without a track record.
package vetting

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/scorer"
)

// Point values and bounds of the vetting scale.
const (
	LicensedPoints  = 15
	InsuredPoints   = 10
	MaxYearsPoints  = 10
	MaxAdjustment   = 10
	MaxScore        = 45
	defaultMaxYears = 5
)

// Tier is the display bucket for a vetting score. It is unrelated to the
// 0-100 performance tiers in package scorer.
type Tier string

const (
	TierStrong      Tier = "strong"
	TierGood        Tier = "good"
	TierAcceptable  Tier = "acceptable"
	TierConditional Tier = "conditional"
	TierDeclined    Tier = "declined"
)

// Input holds the static onboarding attributes of a vendor.
type Input struct {
	Licensed        bool     `json:"licensed"`
	Insured         bool     `json:"insured"`
	YearsInBusiness *float64 `json:"years_in_business"`
	AdminAdjustment *float64 `json:"admin_adjustment,omitempty"`
}

// Breakdown is the itemized vetting score.
type Breakdown struct {
	LicensedPoints  float64 `json:"licensed_points"`
	InsuredPoints   float64 `json:"insured_points"`
	YearsPoints     float64 `json:"years_points"`
	AdminAdjustment float64 `json:"admin_adjustment"`
	TotalScore      float64 `json:"total_score"`
	Tier            Tier    `json:"tier"`
}

// DefaultConfig returns the default vetting configuration.
func DefaultConfig() config.VettingConfig {
	return config.VettingConfig{YearsForMaxPoints: defaultMaxYears}
}

// ValidateConfig checks that a VettingConfig is usable.
func ValidateConfig(c config.VettingConfig) error {
	if c.YearsForMaxPoints <= 0 || math.IsNaN(c.YearsForMaxPoints) || math.IsInf(c.YearsForMaxPoints, 0) {
		return eris.Errorf("vetting: years_for_max_points must be > 0 (got %v)", c.YearsForMaxPoints)
	}
	return nil
}

// Calculator computes vetting scores. It is safe for concurrent use.
type Calculator struct {
	cfg config.VettingConfig
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg config.VettingConfig) (*Calculator, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Calculate returns the vetting breakdown for in. It never fails; malformed
// numbers are clamped.
func (c *Calculator) Calculate(in Input) Breakdown {
	var b Breakdown
	if in.Licensed {
		b.LicensedPoints = LicensedPoints
	}
	if in.Insured {
		b.InsuredPoints = InsuredPoints
	}
	if in.YearsInBusiness != nil && finite(*in.YearsInBusiness) && *in.YearsInBusiness > 0 {
		ratio := math.Min(*in.YearsInBusiness/c.cfg.YearsForMaxPoints, 1)
		b.YearsPoints = math.Round(ratio * MaxYearsPoints)
	}
	if in.AdminAdjustment != nil && finite(*in.AdminAdjustment) {
		b.AdminAdjustment = scorer.Clamp(*in.AdminAdjustment, -MaxAdjustment, MaxAdjustment)
	}

	b.TotalScore = scorer.Clamp(b.LicensedPoints+b.InsuredPoints+b.YearsPoints+b.AdminAdjustment, 0, MaxScore)
	b.Tier = TierFor(b.TotalScore)
	return b
}

// TierFor maps a 0-45 vetting score to its display tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 35:
		return TierStrong
	case score >= 30:
		return TierGood
	case score >= 25:
		return TierAcceptable
	case score >= 15:
		return TierConditional
	default:
		return TierDeclined
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
