package model

import "time"

// Review is a property owner's rating of a completed match. Ratings are 1-5.
type Review struct {
	ID              string    `json:"id" yaml:"id"`
	MatchID         string    `json:"match_id" yaml:"match_id"`
	VendorID        string    `json:"vendor_id" yaml:"vendor_id"`
	Rating          int       `json:"rating" yaml:"rating"`
	QualityRating   *int      `json:"quality_rating,omitempty" yaml:"quality_rating"`
	PriceRating     *int      `json:"price_rating,omitempty" yaml:"price_rating"`
	TimelineRating  *int      `json:"timeline_rating,omitempty" yaml:"timeline_rating"`
	TreatmentRating *int      `json:"treatment_rating,omitempty" yaml:"treatment_rating"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// SubRatings returns the sub-ratings that are set, in a fixed order.
func (r *Review) SubRatings() []int {
	var out []int
	for _, p := range []*int{r.QualityRating, r.PriceRating, r.TimelineRating, r.TreatmentRating} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
