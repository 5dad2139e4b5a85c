package scorer

import (
	"math"
	"time"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/model"
)

// Breakdown holds the component scores behind a performance score. All
// components are on a 0-100 scale; Confidence is 0-1.
type Breakdown struct {
	ReviewScore     float64 `json:"reviewScore"`
	CompletionScore float64 `json:"completionScore"`
	AcceptanceScore float64 `json:"acceptanceScore"`
	VolumeBonus     float64 `json:"volumeBonus"`
	RecencyBonus    float64 `json:"recencyBonus"`
	Penalties       float64 `json:"penalties"`
	Confidence      float64 `json:"confidence"`
}

// Result is a vendor's performance score with its breakdown.
type Result struct {
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Calculator computes performance scores from vendor metrics. Its
// configuration is fixed at construction, so it is safe for concurrent use.
type Calculator struct {
	cfg config.ScoringConfig
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg config.ScoringConfig) (*Calculator, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() config.ScoringConfig {
	return c.cfg
}

// Score computes the performance score of m as of now. It is deterministic for
// a fixed now and never fails: negative counters and out-of-range ratings are
// clamped.
func (c *Calculator) Score(m model.VendorMetrics, now time.Time) Result {
	neutral := c.cfg.Review.NeutralScore

	if !m.HasHistory() {
		return Result{
			Score: neutral,
			Breakdown: Breakdown{
				ReviewScore:     neutral,
				CompletionScore: neutral,
				AcceptanceScore: neutral,
				VolumeBonus:     neutral,
				RecencyBonus:    neutral,
			},
		}
	}

	totalMatches := max(m.TotalMatches, 0)
	accepted := max(m.AcceptedJobs, 0)
	completed := max(m.CompletedJobs, 0)

	reviewScore, confidence := c.reviewComponent(m.Reviews, now)

	b := Breakdown{
		ReviewScore:     reviewScore,
		CompletionScore: c.rateComponent(completed, accepted),
		AcceptanceScore: c.rateComponent(accepted, totalMatches),
		VolumeBonus:     c.volumeBonus(completed, totalMatches),
		RecencyBonus:    c.recencyBonus(m.LastActivityDate, now),
		Penalties:       c.penalties(m),
		Confidence:      confidence,
	}

	w := c.cfg.Weights
	weighted := b.ReviewScore*w.Review +
		b.CompletionScore*w.Completion +
		b.AcceptanceScore*w.Acceptance +
		b.VolumeBonus*w.Volume +
		b.RecencyBonus*w.Recency

	return Result{
		Score:     Round2(Clamp(weighted-b.Penalties, 0, 100)),
		Breakdown: roundBreakdown(b),
	}
}

// reviewComponent returns the recency-weighted review score blended toward
// the neutral score by (1 - confidence), and the confidence itself.
func (c *Calculator) reviewComponent(reviews []model.Review, now time.Time) (float64, float64) {
	neutral := c.cfg.Review.NeutralScore
	if len(reviews) == 0 {
		return neutral, 0
	}

	var weightedSum, weightSum, plainSum float64
	for i := range reviews {
		v := ratingTo100(c.effectiveRating(&reviews[i]))
		w := c.recencyWeight(reviews[i].CreatedAt, now)
		weightedSum += v * w
		weightSum += w
		plainSum += v
	}

	raw := plainSum / float64(len(reviews))
	if weightSum > 0 {
		raw = weightedSum / weightSum
	}

	confidence := math.Min(float64(len(reviews))/float64(c.cfg.Review.MinReviewsForFullWeight), 1)
	return neutral + (raw-neutral)*confidence, confidence
}

// effectiveRating blends the overall rating with the mean of any sub-ratings.
func (c *Calculator) effectiveRating(r *model.Review) float64 {
	overall := clampRating(r.Rating)
	subs := r.SubRatings()
	if len(subs) == 0 {
		return overall
	}
	var sum float64
	for _, s := range subs {
		sum += clampRating(s)
	}
	wt := c.cfg.Review.SubRatingWeight
	return (1-wt)*overall + wt*(sum/float64(len(subs)))
}

// recencyWeight halves a review's influence every half-life. Reviews without
// a timestamp or dated in the future count at full weight.
func (c *Calculator) recencyWeight(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 1
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return math.Pow(2, -ageDays/c.cfg.Review.HalfLifeDays)
}

// rateComponent scores num/den on 0-100. A zero denominator is unscored and
// returns the neutral score.
func (c *Calculator) rateComponent(num, den int) float64 {
	if den <= 0 {
		return c.cfg.Review.NeutralScore
	}
	return Clamp(float64(num)/float64(den), 0, 1) * 100
}

// volumeBonus grows with completed jobs with diminishing returns. A vendor
// with no job history is unscored and gets the neutral score.
func (c *Calculator) volumeBonus(completed, totalMatches int) float64 {
	if completed <= 0 && totalMatches <= 0 {
		return c.cfg.Review.NeutralScore
	}
	return 100 * (1 - math.Exp(-float64(max(completed, 0))/c.cfg.VolumeScale))
}

// recencyBonus decays linearly from 100 to 0 across the recency window after
// the last job activity. Without an activity date it is unscored and returns
// the neutral score.
func (c *Calculator) recencyBonus(last *time.Time, now time.Time) float64 {
	if last == nil || last.IsZero() {
		return c.cfg.Review.NeutralScore
	}
	days := math.Max(0, now.Sub(*last).Hours()/24)
	return 100 * math.Max(0, 1-days/c.cfg.RecencyWindowDays)
}

// penalties sums per-event penalty points and compresses them under the
// configured ceiling, so each extra event still adds something.
func (c *Calculator) penalties(m model.VendorMetrics) float64 {
	p := c.cfg.Penalties
	oneStars := 0
	for i := range m.Reviews {
		if m.Reviews[i].Rating <= 1 {
			oneStars++
		}
	}
	raw := p.NoShow*float64(max(m.NoShows, 0)) +
		p.DeclineAfterAccept*float64(max(m.DeclinesAfterAccept, 0)) +
		p.OneStar*float64(oneStars)
	if raw <= 0 {
		return 0
	}
	return p.Max * (1 - math.Exp(-raw/p.Max))
}

// ratingTo100 maps a 1-5 rating linearly onto 0-100.
func ratingTo100(rating float64) float64 {
	return (rating - 1) * 25
}

func clampRating(r int) float64 {
	return Clamp(float64(r), 1, 5)
}

func roundBreakdown(b Breakdown) Breakdown {
	return Breakdown{
		ReviewScore:     Round2(b.ReviewScore),
		CompletionScore: Round2(b.CompletionScore),
		AcceptanceScore: Round2(b.AcceptanceScore),
		VolumeBonus:     Round2(b.VolumeBonus),
		RecencyBonus:    Round2(b.RecencyBonus),
		Penalties:       Round2(b.Penalties),
		Confidence:      b.Confidence,
	}
}
