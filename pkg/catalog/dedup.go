package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizradar/pkg/geo"
	"bizradar/pkg/places"
	"bizradar/pkg/storage"
)

// fuzzyMaxDistanceM bounds the coordinate proximity for the name-based
// fallback. It merges directory re-indexing artifacts, never two genuinely
// distinct businesses across the street from each other.
const fuzzyMaxDistanceM = 50

// fuzzySearchBoxDeg is the bounding box half-width used to pre-filter
// candidates before the exact distance check (~110m per 0.001 deg of lat).
const fuzzySearchBoxDeg = 0.001

// Deduplicator resolves raw place records to stable business identities.
// Re-ingesting the same record any number of times yields exactly one row.
type Deduplicator struct {
	db    *storage.DB
	locks *keyedMutex
}

func NewDeduplicator(db *storage.DB) *Deduplicator {
	return &Deduplicator{db: db, locks: newKeyedMutex()}
}

// Resolve maps a raw record to a business row, creating one if needed.
// Resolution order: exact match on the external place id when present,
// then normalized name plus coordinate proximity when the id is missing or
// unknown. The fallback catches directory re-indexing, where a known place
// comes back under a fresh id. Writes for one identity are serialized, so
// concurrent scan points discovering the same place resolve to a single
// created row.
func (d *Deduplicator) Resolve(ctx context.Context, raw places.RawPlace, regionID string, now time.Time) (storage.Business, bool, error) {
	in := storage.BusinessInput{
		ExternalPlaceID: raw.PlaceID,
		Name:            raw.Name,
		Category:        raw.Category,
		Address:         raw.Address,
		Lat:             raw.Lat,
		Lng:             raw.Lng,
		Rating:          raw.Rating,
		ReviewCount:     raw.ReviewCount,
		PhotoCount:      raw.PhotoCount,
		Website:         raw.Website,
		OpeningHours:    raw.OpeningHours,
		RegionID:        regionID,
	}

	if raw.PlaceID != "" {
		unlock := d.locks.Lock(raw.PlaceID)
		defer unlock()
		_, err := d.db.GetBusinessByPlaceID(ctx, raw.PlaceID)
		if err == nil {
			return d.db.UpsertBusiness(ctx, in, now)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return storage.Business{}, false, err
		}
		// Unknown id: it may be a re-indexed id for a place already on
		// file, so try the proximity merge before creating.
	}
	return d.resolveFuzzy(ctx, raw, in, now)
}

// resolveFuzzy handles records whose id is absent or not yet on file. The
// lock key is the normalized name, which covers both racing creators and
// racing updaters of the same place.
func (d *Deduplicator) resolveFuzzy(ctx context.Context, raw places.RawPlace, in storage.BusinessInput, now time.Time) (storage.Business, bool, error) {
	nameNorm := storage.NormalizeName(raw.Name)
	if nameNorm == "" {
		return storage.Business{}, false, fmt.Errorf("%w: empty name and no place id", places.ErrMalformed)
	}
	unlock := d.locks.Lock("name:" + nameNorm)
	defer unlock()

	candidates, err := d.db.FindByNormalizedName(ctx, nameNorm, raw.Lat, raw.Lng, fuzzySearchBoxDeg)
	if err != nil {
		return storage.Business{}, false, err
	}
	for _, c := range candidates {
		if geo.HaversineM(raw.Lat, raw.Lng, c.Lat, c.Lng) > fuzzyMaxDistanceM {
			continue
		}
		// Keep the stored identity: a missing id in one response must not
		// mint a new one.
		in.ExternalPlaceID = c.ExternalPlaceID
		if err := d.db.TouchBusiness(ctx, c.ID, in, now); err != nil {
			return storage.Business{}, false, err
		}
		updated, err := d.db.GetBusinessByPlaceID(ctx, c.ExternalPlaceID)
		return updated, false, err
	}

	// No candidate close enough: this is a new place. Records without an id
	// get a deterministic surrogate identity from name and rounded
	// coordinates so a re-scan of the same record converges on the same row.
	if in.ExternalPlaceID == "" {
		in.ExternalPlaceID = surrogateID(nameNorm, raw.Lat, raw.Lng)
	}
	return d.db.UpsertBusiness(ctx, in, now)
}

func surrogateID(nameNorm string, lat, lng float64) string {
	return fmt.Sprintf("local:%s@%.4f,%.4f", nameNorm, lat, lng)
}
