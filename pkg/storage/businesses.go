package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("storage: not found")

// BusinessInput carries the observed fields for one upsert. Identity fields
// (ExternalPlaceID) must already be resolved by the caller.
type BusinessInput struct {
	ExternalPlaceID string
	Name            string
	Category        string
	Address         string
	Lat             float64
	Lng             float64
	Rating          float64
	ReviewCount     int
	PhotoCount      int
	Website         string
	OpeningHours    string
	RegionID        string
}

// UpsertBusiness inserts a business or, when the external place id already
// exists, updates its mutable fields in place. The statement is atomic at
// the identity key, so two workers racing on the same new place resolve to
// exactly one row. first_seen and external_place_id are never rewritten on
// conflict; scrape_count counts every ingestion including the first.
func (d *DB) UpsertBusiness(ctx context.Context, in BusinessInput, now time.Time) (Business, bool, error) {
	if in.ExternalPlaceID == "" {
		return Business{}, false, fmt.Errorf("upsert business: empty external place id")
	}
	nameNorm := NormalizeName(in.Name)
	row := d.sql.QueryRowContext(ctx, `
INSERT INTO businesses (
  external_place_id, name, name_normalized, category, address, lat, lng,
  rating, review_count, photo_count, website, opening_hours, region_id,
  first_seen, last_fetched, scrape_count, last_update_kind
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,'created')
ON CONFLICT(external_place_id) DO UPDATE SET
  name             = excluded.name,
  name_normalized  = excluded.name_normalized,
  category         = excluded.category,
  address          = excluded.address,
  lat              = excluded.lat,
  lng              = excluded.lng,
  rating           = excluded.rating,
  review_count     = excluded.review_count,
  photo_count      = excluded.photo_count,
  website          = excluded.website,
  opening_hours    = excluded.opening_hours,
  region_id        = excluded.region_id,
  last_fetched     = excluded.last_fetched,
  scrape_count     = scrape_count + 1,
  last_update_kind = 'updated'
RETURNING id, first_seen, scrape_count, last_update_kind, confidence`,
		in.ExternalPlaceID, in.Name, nameNorm, in.Category, in.Address, in.Lat, in.Lng,
		in.Rating, in.ReviewCount, in.PhotoCount, in.Website, in.OpeningHours, in.RegionID,
		fmtTime(now), fmtTime(now))

	var (
		id          int64
		firstSeen   string
		scrapeCount int
		updateKind  string
		confidence  int
	)
	if err := row.Scan(&id, &firstSeen, &scrapeCount, &updateKind, &confidence); err != nil {
		return Business{}, false, err
	}

	b := Business{
		ID:              id,
		ExternalPlaceID: in.ExternalPlaceID,
		Name:            in.Name,
		NameNormalized:  nameNorm,
		Category:        in.Category,
		Address:         in.Address,
		Lat:             in.Lat,
		Lng:             in.Lng,
		Rating:          in.Rating,
		ReviewCount:     in.ReviewCount,
		PhotoCount:      in.PhotoCount,
		Website:         in.Website,
		OpeningHours:    in.OpeningHours,
		RegionID:        in.RegionID,
		FirstSeen:       parseTime(firstSeen),
		LastFetched:     now.UTC(),
		ScrapeCount:     scrapeCount,
		LastUpdateKind:  updateKind,
		Confidence:      confidence,
	}
	return b, scrapeCount == 1, nil
}

const businessColumns = `id, external_place_id, name, name_normalized, category, address, lat, lng,
rating, review_count, photo_count, website, opening_hours, region_id,
first_seen, last_fetched, scrape_count, last_update_kind, confidence, indicators`

func scanBusiness(row interface{ Scan(...any) error }) (Business, error) {
	var (
		b                      Business
		rating                 sql.NullFloat64
		category, address      sql.NullString
		website, hours         sql.NullString
		regionID, indicators   sql.NullString
		firstSeen, lastFetched string
	)
	err := row.Scan(&b.ID, &b.ExternalPlaceID, &b.Name, &b.NameNormalized, &category, &address,
		&b.Lat, &b.Lng, &rating, &b.ReviewCount, &b.PhotoCount, &website, &hours, &regionID,
		&firstSeen, &lastFetched, &b.ScrapeCount, &b.LastUpdateKind, &b.Confidence, &indicators)
	if err != nil {
		return Business{}, err
	}
	b.Category = category.String
	b.Address = address.String
	b.Rating = rating.Float64
	b.Website = website.String
	b.OpeningHours = hours.String
	b.RegionID = regionID.String
	b.Indicators = indicators.String
	b.FirstSeen = parseTime(firstSeen)
	b.LastFetched = parseTime(lastFetched)
	return b, nil
}

// GetBusinessByPlaceID looks a business up by its external identity key.
func (d *DB) GetBusinessByPlaceID(ctx context.Context, placeID string) (Business, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+businessColumns+" FROM businesses WHERE external_place_id = ?", placeID)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Business{}, ErrNotFound
	}
	return b, err
}

// FindByNormalizedName returns businesses whose normalized name matches
// exactly, constrained to a small bounding box around the given coordinate.
// Used only for the fuzzy dedup fallback when a raw record carries no
// external id.
func (d *DB) FindByNormalizedName(ctx context.Context, nameNorm string, lat, lng, boxDeg float64) ([]Business, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+businessColumns+` FROM businesses
WHERE name_normalized = ? AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		nameNorm, lat-boxDeg, lat+boxDeg, lng-boxDeg, lng+boxDeg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TouchBusiness updates the mutable fields of an existing row by id,
// preserving identity and first_seen. Used by the fuzzy dedup path.
func (d *DB) TouchBusiness(ctx context.Context, id int64, in BusinessInput, now time.Time) error {
	res, err := d.sql.ExecContext(ctx, `
UPDATE businesses SET
  name = ?, name_normalized = ?, category = ?, address = ?, lat = ?, lng = ?,
  rating = ?, review_count = ?, photo_count = ?, website = ?, opening_hours = ?,
  region_id = ?, last_fetched = ?, scrape_count = scrape_count + 1,
  last_update_kind = 'updated'
WHERE id = ?`,
		in.Name, NormalizeName(in.Name), in.Category, in.Address, in.Lat, in.Lng,
		in.Rating, in.ReviewCount, in.PhotoCount, in.Website, in.OpeningHours,
		in.RegionID, fmtTime(now), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIndicators persists the derived indicator bag and its confidence score.
// The column is a cache of IndicatorEngine output, never the source of truth.
func (d *DB) SetIndicators(ctx context.Context, businessID int64, indicatorsJSON string, confidence int) error {
	_, err := d.sql.ExecContext(ctx,
		"UPDATE businesses SET indicators = ?, confidence = ? WHERE id = ?",
		indicatorsJSON, confidence, businessID)
	return err
}

// ListOptions controls selection when listing businesses.
type ListOptions struct {
	RegionID       string
	Category       string
	MinConfidence  int
	FirstSeenSince time.Time
	Limit          int
}

// ListBusinesses returns catalog rows matching the filters, most confident
// first. This is the read-only query surface the dashboard/export layers
// consume.
func (d *DB) ListBusinesses(ctx context.Context, opts ListOptions) ([]Business, error) {
	where := "WHERE 1=1"
	args := []any{}
	if opts.RegionID != "" {
		where += " AND region_id = ?"
		args = append(args, opts.RegionID)
	}
	if opts.Category != "" {
		where += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.MinConfidence > 0 {
		where += " AND confidence >= ?"
		args = append(args, opts.MinConfidence)
	}
	if !opts.FirstSeenSince.IsZero() {
		where += " AND first_seen >= ?"
		args = append(args, fmtTime(opts.FirstSeenSince))
	}
	q := "SELECT " + businessColumns + " FROM businesses " + where + " ORDER BY confidence DESC, first_seen DESC"
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
