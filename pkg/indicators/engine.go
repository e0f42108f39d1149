package indicators

import (
	"encoding/json"
	"time"

	"bizradar/pkg/catalog"
	"bizradar/pkg/storage"
)

// AgeEstimate is a total-order classification of how long a business has
// plausibly existed, from its earliest known review.
type AgeEstimate string

const (
	AgeUltraNew    AgeEstimate = "ultra_new"
	AgeVeryNew     AgeEstimate = "very_new"
	AgeNew         AgeEstimate = "new"
	AgeRecent      AgeEstimate = "recent"
	AgeEstablished AgeEstimate = "established"
	AgeOld         AgeEstimate = "old"
)

// MetadataAnalysis carries the derived age/freshness context stored next to
// the boolean signals.
type MetadataAnalysis struct {
	ReviewAgeMonths     int         `json:"review_age_months"`
	PhotoCount          int         `json:"photo_count"`
	BusinessAgeEstimate AgeEstimate `json:"business_age_estimate"`
	ConfidenceLevel     string      `json:"confidence_level"` // low | medium | high
}

// Indicators is the derived value object recomputed on every scan. It is
// persisted on the business row as a query cache, never hand-mutated.
type Indicators struct {
	RecentlyOpened    bool             `json:"recently_opened"`
	FewReviews        bool             `json:"few_reviews"`
	ReviewSpike       bool             `json:"review_spike"`
	HasRecentPhoto    bool             `json:"has_recent_photo"`
	RatingImprovement bool             `json:"rating_improvement"`
	Confidence        int              `json:"confidence"`
	Metadata          MetadataAnalysis `json:"metadata_analysis"`
}

// JSON renders the indicator bag for denormalized storage.
func (i Indicators) JSON() string {
	b, _ := json.Marshal(i)
	return string(b)
}

// Engine derives indicators and the confidence score. Compute is pure: the
// same business, snapshot and metrics always produce the same output, so
// scores can be recomputed offline from stored history.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives the indicator set for a business given its previous
// snapshot (nil when none exists) and the metrics observed now. Delta-based
// signals default to false without a previous snapshot.
func (e *Engine) Compute(b storage.Business, prev *storage.Snapshot, cur catalog.Metrics, now time.Time) Indicators {
	ind := Indicators{}

	ind.RecentlyOpened = !b.FirstSeen.IsZero() &&
		now.Sub(b.FirstSeen) <= time.Duration(e.cfg.RecentOpenDays)*24*time.Hour

	ind.FewReviews = cur.ReviewCount < e.cfg.FewReviewsMax && cur.Rating > 0

	if prev != nil {
		elapsed := elapsedDays(prev.Date, now)
		if elapsed > 0 {
			velocity := float64(cur.ReviewCount-prev.ReviewCount) / elapsed
			ind.ReviewSpike = velocity > e.cfg.SpikePerDay
		}
		ind.HasRecentPhoto = cur.PhotoCount-prev.PhotoCount >= e.cfg.PhotoDeltaMin
		ind.RatingImprovement = prev.Rating > 0 && cur.Rating-prev.Rating >= e.cfg.RatingDeltaMin
	}

	ageMonths := e.reviewAgeMonths(b, cur, now)
	ageClass := e.classifyAge(ageMonths)

	score := e.cfg.AgeScores[ageClass]
	if ind.RecentlyOpened {
		score += e.cfg.Weights.RecentlyOpened
	}
	if ind.FewReviews {
		score += e.cfg.Weights.FewReviews
	}
	if ind.ReviewSpike {
		score += e.cfg.Weights.ReviewSpike
	}
	if ind.HasRecentPhoto {
		score += e.cfg.Weights.HasRecentPhoto
	}
	if ind.RatingImprovement {
		score += e.cfg.Weights.RatingImprovement
	}
	ind.Confidence = clamp(score, 0, 100)

	ind.Metadata = MetadataAnalysis{
		ReviewAgeMonths:     ageMonths,
		PhotoCount:          cur.PhotoCount,
		BusinessAgeEstimate: ageClass,
		ConfidenceLevel:     confidenceLevel(ind.Confidence),
	}
	return ind
}

// reviewAgeMonths estimates business age from the earliest known review,
// falling back to first_seen when the directory exposes no review dates.
func (e *Engine) reviewAgeMonths(b storage.Business, cur catalog.Metrics, now time.Time) int {
	anchor := cur.OldestReviewDate
	if anchor.IsZero() {
		anchor = b.FirstSeen
	}
	if anchor.IsZero() || anchor.After(now) {
		return 0
	}
	months := int(now.Sub(anchor).Hours() / (24 * 30))
	if months < 0 {
		return 0
	}
	return months
}

func (e *Engine) classifyAge(months int) AgeEstimate {
	bounds := e.cfg.AgeBoundsMonths
	switch {
	case months < bounds[0]:
		return AgeUltraNew
	case months < bounds[1]:
		return AgeVeryNew
	case months < bounds[2]:
		return AgeNew
	case months < bounds[3]:
		return AgeRecent
	case months < bounds[4]:
		return AgeEstablished
	default:
		return AgeOld
	}
}

func elapsedDays(snapshotDate string, now time.Time) float64 {
	t, err := time.Parse("2006-01-02", snapshotDate)
	if err != nil {
		return 0
	}
	return now.Sub(t).Hours() / 24
}

func confidenceLevel(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
