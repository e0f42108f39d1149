package catalog

import (
	"context"
	"errors"
	"time"

	"bizradar/pkg/storage"
)

// Metrics are the mutable numbers observed for a business at scan time.
// OldestReviewDate is zero when the directory exposes no review dates.
type Metrics struct {
	ReviewCount      int
	Rating           float64
	PhotoCount       int
	OldestReviewDate time.Time
}

// SnapshotManager persists dated metric snapshots and hands back the prior
// one for delta computation.
type SnapshotManager struct {
	db *storage.DB
}

func NewSnapshotManager(db *storage.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// Record writes the snapshot for the business at asOf's calendar date and
// returns it together with the immediately preceding snapshot, or nil when
// no earlier history exists. Multiple scans on the same day update the
// day's snapshot in place rather than appending a duplicate.
func (m *SnapshotManager) Record(ctx context.Context, businessID int64, metrics Metrics, asOf time.Time) (storage.Snapshot, *storage.Snapshot, error) {
	date := asOf.UTC().Format("2006-01-02")

	var prev *storage.Snapshot
	p, err := m.db.PreviousSnapshot(ctx, businessID, date)
	switch {
	case err == nil:
		prev = &p
	case errors.Is(err, storage.ErrNotFound):
		// First snapshot for this business.
	default:
		return storage.Snapshot{}, nil, err
	}

	snap, err := m.db.UpsertSnapshot(ctx, businessID, date, storage.SnapshotInput{
		ReviewCount: metrics.ReviewCount,
		Rating:      metrics.Rating,
		PhotoCount:  metrics.PhotoCount,
	})
	if err != nil {
		return storage.Snapshot{}, nil, err
	}
	return snap, prev, nil
}
