package storage

import "time"

// Business is one row of the deduplicated catalog. ExternalPlaceID is the
// stable identity key; FirstSeen is written once on creation and never
// rewritten by later scans.
type Business struct {
	ID              int64   `json:"id"`
	ExternalPlaceID string  `json:"external_place_id"`
	Name            string  `json:"name"`
	NameNormalized  string  `json:"-"`
	Category        string  `json:"category"`
	Address         string  `json:"address"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	PhotoCount      int     `json:"photo_count"`
	Website         string  `json:"website,omitempty"`
	OpeningHours    string  `json:"opening_hours,omitempty"`
	RegionID        string  `json:"region_id"`

	FirstSeen      time.Time `json:"first_seen"`
	LastFetched    time.Time `json:"last_fetched"`
	ScrapeCount    int       `json:"scrape_count"`
	LastUpdateKind string    `json:"last_update_kind"` // created | updated
	Confidence     int       `json:"confidence"`
	Indicators     string    `json:"indicators,omitempty"` // denormalized JSON, cache only
}

// Snapshot is an immutable dated record of a business's mutable metrics.
// (BusinessID, Date) is unique; history is append-only.
type Snapshot struct {
	ID          int64   `json:"id"`
	BusinessID  int64   `json:"business_id"`
	Date        string  `json:"snapshot_date"` // YYYY-MM-DD
	ReviewCount int     `json:"review_count"`
	Rating      float64 `json:"rating"`
	PhotoCount  int     `json:"photo_count"`
	Indicators  string  `json:"indicators,omitempty"`
}

// Session mirrors one scrape_sessions row.
type Session struct {
	ID                string     `json:"id"`
	Kind              string     `json:"kind"` // initial | periodic | manual
	TargetRegion      string     `json:"target_region"`
	TargetCategories  string     `json:"target_categories"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	APICallsCount     int64      `json:"api_calls_count"`
	EstimatedCost     float64    `json:"estimated_cost"`
	BusinessesFound   int64      `json:"businesses_found"`
	BusinessesNew     int64      `json:"businesses_new"`
	BusinessesUpdated int64      `json:"businesses_updated"`
	Status            string     `json:"status"` // running | completed | failed | cancelled
	ErrorLog          string     `json:"error_log,omitempty"`
}

// Session status values. Terminal states are final.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const timeFormat = time.RFC3339

func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	// Older rows written by sqlite's CURRENT_TIMESTAMP.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
