package storage

import (
	"context"
	"database/sql"
	"errors"
)

// SnapshotInput carries the observed metrics for one snapshot write.
type SnapshotInput struct {
	ReviewCount int
	Rating      float64
	PhotoCount  int
	Indicators  string
}

// UpsertSnapshot writes the snapshot for (businessID, date). A second scan
// on the same calendar day updates the existing row instead of creating a
// duplicate, keeping snapshot_date values unique per business.
func (d *DB) UpsertSnapshot(ctx context.Context, businessID int64, date string, in SnapshotInput) (Snapshot, error) {
	row := d.sql.QueryRowContext(ctx, `
INSERT INTO snapshots (business_id, snapshot_date, review_count, rating, photo_count, indicators)
VALUES (?,?,?,?,?,?)
ON CONFLICT(business_id, snapshot_date) DO UPDATE SET
  review_count = excluded.review_count,
  rating       = excluded.rating,
  photo_count  = excluded.photo_count,
  indicators   = excluded.indicators
RETURNING id`,
		businessID, date, in.ReviewCount, in.Rating, in.PhotoCount, in.Indicators)

	var id int64
	if err := row.Scan(&id); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:          id,
		BusinessID:  businessID,
		Date:        date,
		ReviewCount: in.ReviewCount,
		Rating:      in.Rating,
		PhotoCount:  in.PhotoCount,
		Indicators:  in.Indicators,
	}, nil
}

// PreviousSnapshot returns the latest snapshot strictly before the given
// date, or ErrNotFound when the business has no earlier history.
func (d *DB) PreviousSnapshot(ctx context.Context, businessID int64, beforeDate string) (Snapshot, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT id, business_id, snapshot_date, review_count, rating, photo_count, indicators
FROM snapshots WHERE business_id = ? AND snapshot_date < ?
ORDER BY snapshot_date DESC LIMIT 1`, businessID, beforeDate)
	return scanSnapshot(row)
}

// ListSnapshots returns a business's snapshot history, oldest first.
func (d *DB) ListSnapshots(ctx context.Context, businessID int64) ([]Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, business_id, snapshot_date, review_count, rating, photo_count, indicators
FROM snapshots WHERE business_id = ? ORDER BY snapshot_date`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSnapshot(row interface{ Scan(...any) error }) (Snapshot, error) {
	var (
		s          Snapshot
		rating     sql.NullFloat64
		indicators sql.NullString
	)
	err := row.Scan(&s.ID, &s.BusinessID, &s.Date, &s.ReviewCount, &rating, &s.PhotoCount, &indicators)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	s.Rating = rating.Float64
	s.Indicators = indicators.String
	return s, nil
}
