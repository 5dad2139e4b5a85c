package scorer

// Tier is the display bucket for a 0-100 performance or match score.
type Tier string

const (
	TierNew          Tier = "new"
	TierExcellent    Tier = "excellent"
	TierGood         Tier = "good"
	TierAverage      Tier = "average"
	TierBelowAverage Tier = "below_average"
	TierPoor         Tier = "poor"
)

// Tiers lists every tier, best first, with TierNew last.
var Tiers = []Tier{TierExcellent, TierGood, TierAverage, TierBelowAverage, TierPoor, TierNew}

// tierThresholds are checked in order; the first threshold the score meets wins.
var tierThresholds = []struct {
	min  float64
	tier Tier
}{
	{85, TierExcellent},
	{65, TierGood},
	{45, TierAverage},
	{30, TierBelowAverage},
}

// GetScoreTier returns the tier for score. Vendors without reviews are always
// TierNew regardless of score.
func GetScoreTier(score float64, hasReviews bool) Tier {
	if !hasReviews {
		return TierNew
	}
	for _, t := range tierThresholds {
		if score >= t.min {
			return t.tier
		}
	}
	return TierPoor
}

// Recommendable reports whether vendors in this tier may be recommended.
func (t Tier) Recommendable() bool {
	switch t {
	case TierExcellent, TierGood:
		return true
	case TierAverage, TierBelowAverage, TierPoor, TierNew:
		return false
	default:
		return false
	}
}

// Label returns the display label for the tier.
func (t Tier) Label() string {
	switch t {
	case TierExcellent:
		return "Excellent"
	case TierGood:
		return "Good"
	case TierAverage:
		return "Average"
	case TierBelowAverage:
		return "Below Average"
	case TierPoor:
		return "Poor"
	case TierNew:
		return "New"
	default:
		return string(t)
	}
}
