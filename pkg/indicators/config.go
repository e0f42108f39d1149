package indicators

import (
	"fmt"

	"github.com/spf13/viper"
)

// Weights are the per-signal contributions to the confidence score. All
// weights must be non-negative so flipping a signal on never lowers the
// score.
type Weights struct {
	RecentlyOpened    int `mapstructure:"recently_opened"`
	FewReviews        int `mapstructure:"few_reviews"`
	ReviewSpike       int `mapstructure:"review_spike"`
	HasRecentPhoto    int `mapstructure:"has_recent_photo"`
	RatingImprovement int `mapstructure:"rating_improvement"`
}

// Config is the full threshold/weight table for the engine. Exact values
// are tunable operator configuration, not invariants; the defaults below
// sum to a 100-point ceiling.
type Config struct {
	// RecentOpenDays is the first-seen window for recently_opened.
	RecentOpenDays int `mapstructure:"recent_open_days"`
	// FewReviewsMax is the exclusive review-count ceiling for few_reviews.
	FewReviewsMax int `mapstructure:"few_reviews_max"`
	// SpikePerDay is the review velocity (reviews/day) above which
	// review_spike fires.
	SpikePerDay float64 `mapstructure:"spike_per_day"`
	// RatingDeltaMin is the minimum rating gain for rating_improvement.
	RatingDeltaMin float64 `mapstructure:"rating_delta_min"`
	// PhotoDeltaMin is the minimum photo-count gain for has_recent_photo.
	PhotoDeltaMin int `mapstructure:"photo_delta_min"`
	// AgeBoundsMonths are the five ascending month boundaries separating
	// ultra_new < very_new < new < recent < established < old.
	AgeBoundsMonths [5]int `mapstructure:"age_bounds_months"`
	// AgeScores is the base confidence contribution per age class.
	AgeScores map[AgeEstimate]int `mapstructure:"age_scores"`

	Weights Weights `mapstructure:"weights"`
}

func DefaultConfig() Config {
	return Config{
		RecentOpenDays:  30,
		FewReviewsMax:   10,
		SpikePerDay:     0.5,
		RatingDeltaMin:  0.2,
		PhotoDeltaMin:   1,
		AgeBoundsMonths: [5]int{1, 3, 6, 12, 36},
		AgeScores: map[AgeEstimate]int{
			AgeUltraNew:    30,
			AgeVeryNew:     25,
			AgeNew:         18,
			AgeRecent:      10,
			AgeEstablished: 4,
			AgeOld:         0,
		},
		Weights: Weights{
			RecentlyOpened:    25,
			FewReviews:        10,
			ReviewSpike:       20,
			HasRecentPhoto:    5,
			RatingImprovement: 10,
		},
	}
}

// FromViper overlays operator configuration (the "indicators" key) onto the
// defaults, so a partial config file tunes individual knobs.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v.IsSet("indicators") {
		if err := v.UnmarshalKey("indicators", &cfg); err != nil {
			return Config{}, fmt.Errorf("parse indicators config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	ws := []int{c.Weights.RecentlyOpened, c.Weights.FewReviews, c.Weights.ReviewSpike,
		c.Weights.HasRecentPhoto, c.Weights.RatingImprovement}
	for _, w := range ws {
		if w < 0 {
			return fmt.Errorf("indicator weights must be non-negative")
		}
	}
	for i := 1; i < len(c.AgeBoundsMonths); i++ {
		if c.AgeBoundsMonths[i] <= c.AgeBoundsMonths[i-1] {
			return fmt.Errorf("age bounds must be strictly ascending")
		}
	}
	for cls, s := range c.AgeScores {
		if s < 0 {
			return fmt.Errorf("age score for %s must be non-negative", cls)
		}
	}
	return nil
}
