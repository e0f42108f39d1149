package places

import (
	"context"
	"errors"
	"time"
)

// RawPlace is one record as returned by the places directory, reduced to the
// fields the catalog and indicator engine consume.
type RawPlace struct {
	PlaceID          string
	Name             string
	Category         string
	Address          string
	Lat              float64
	Lng              float64
	Rating           float64
	ReviewCount      int
	PhotoCount       int
	Website          string
	OpeningHours     string
	OldestReviewDate time.Time // zero when the directory exposes no review dates
}

// Client issues queries against the external places directory. It is the
// only suspension point of a scan; everything downstream is local.
type Client interface {
	// Nearby searches around a center within radiusM for places matching
	// the query term.
	Nearby(ctx context.Context, lat, lng, radiusM float64, query string) ([]RawPlace, error)
	// Details fetches the full record for a single place.
	Details(ctx context.Context, placeID string) (RawPlace, error)
}

// Error taxonomy for directory failures. Callers decide what is fatal:
// a rate limit never counts against a session's failure budget, a malformed
// record only drops that record.
var (
	ErrRateLimited = errors.New("places: rate limited by directory")
	ErrUnavailable = errors.New("places: directory unavailable")
	ErrNotFound    = errors.New("places: place not found")
	ErrMalformed   = errors.New("places: malformed record")
)
