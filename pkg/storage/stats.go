package storage

import "context"

// RegionStats aggregates catalog counts for one region.
type RegionStats struct {
	RegionID      string `json:"region_id"`
	BusinessCount int    `json:"business_count"`
	LikelyNew     int    `json:"likely_new"`
	SnapshotCount int    `json:"snapshot_count"`
}

// likelyNewThreshold is the confidence floor used for the stats rollup; the
// export layer applies its own filters via ListBusinesses.
const likelyNewThreshold = 60

// GetStats returns per-region catalog statistics.
func (d *DB) GetStats(ctx context.Context) ([]RegionStats, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT
  COALESCE(b.region_id, ''),
  COUNT(b.id),
  SUM(CASE WHEN b.confidence >= ? THEN 1 ELSE 0 END),
  (SELECT COUNT(*) FROM snapshots s JOIN businesses b2 ON s.business_id = b2.id
   WHERE COALESCE(b2.region_id, '') = COALESCE(b.region_id, ''))
FROM businesses b
GROUP BY b.region_id
ORDER BY b.region_id`, likelyNewThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []RegionStats
	for rows.Next() {
		var s RegionStats
		if err := rows.Scan(&s.RegionID, &s.BusinessCount, &s.LikelyNew, &s.SnapshotCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
