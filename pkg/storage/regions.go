package storage

import (
	"context"
	"database/sql"

	"bizradar/pkg/geo"
)

// SaveRegions replaces the stored hierarchy seed with the given regions.
// Regions are seed data: written at setup, read-only during scans.
func (d *DB) SaveRegions(ctx context.Context, regions []geo.Region) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range regions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO regions (id, kind, name, parent_id, lat, lng, radius_m, priority)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  kind = excluded.kind, name = excluded.name, parent_id = excluded.parent_id,
  lat = excluded.lat, lng = excluded.lng, radius_m = excluded.radius_m,
  priority = excluded.priority`,
			r.ID, string(r.Kind), r.Name, nullIfEmpty(r.ParentID), r.Lat, r.Lng, r.RadiusM, r.Priority)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadHierarchy rebuilds the region arena from the regions table. Parents
// sort before children because tops have no parent and ids are inserted in
// kind order.
func (d *DB) LoadHierarchy(ctx context.Context) (*geo.Hierarchy, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, kind, name, parent_id, lat, lng, radius_m, priority FROM regions
ORDER BY CASE kind WHEN 'top' THEN 0 WHEN 'sub' THEN 1 ELSE 2 END, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	h := geo.NewHierarchy()
	for rows.Next() {
		var (
			r      geo.Region
			kind   string
			parent sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &r.Name, &parent, &r.Lat, &r.Lng, &r.RadiusM, &r.Priority); err != nil {
			return nil, err
		}
		r.Kind = geo.RegionKind(kind)
		r.ParentID = parent.String
		if err := h.Add(r); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return h, nil
}
