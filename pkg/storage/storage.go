package storage

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS regions (
  id        TEXT PRIMARY KEY,
  kind      TEXT NOT NULL CHECK (kind IN ('top','sub','locality')),
  name      TEXT NOT NULL,
  parent_id TEXT,
  lat       REAL NOT NULL,
  lng       REAL NOT NULL,
  radius_m  REAL NOT NULL,
  priority  INTEGER NOT NULL DEFAULT 3
);
CREATE TABLE IF NOT EXISTS businesses (
  id                INTEGER PRIMARY KEY,
  external_place_id TEXT NOT NULL UNIQUE,
  name              TEXT NOT NULL,
  name_normalized   TEXT NOT NULL,
  category          TEXT,
  address           TEXT,
  lat               REAL NOT NULL,
  lng               REAL NOT NULL,
  rating            REAL,
  review_count      INTEGER NOT NULL DEFAULT 0,
  photo_count       INTEGER NOT NULL DEFAULT 0,
  website           TEXT,
  opening_hours     TEXT,
  region_id         TEXT,
  first_seen        TEXT NOT NULL,
  last_fetched      TEXT NOT NULL,
  scrape_count      INTEGER NOT NULL DEFAULT 1,
  last_update_kind  TEXT NOT NULL DEFAULT 'created',
  confidence        INTEGER NOT NULL DEFAULT 0,
  indicators        TEXT
);
CREATE INDEX IF NOT EXISTS idx_business_region ON businesses(region_id);
CREATE INDEX IF NOT EXISTS idx_business_name ON businesses(name_normalized);
CREATE INDEX IF NOT EXISTS idx_business_confidence ON businesses(confidence);
CREATE TABLE IF NOT EXISTS snapshots (
  id            INTEGER PRIMARY KEY,
  business_id   INTEGER NOT NULL REFERENCES businesses(id),
  snapshot_date TEXT NOT NULL,
  review_count  INTEGER NOT NULL DEFAULT 0,
  rating        REAL,
  photo_count   INTEGER NOT NULL DEFAULT 0,
  indicators    TEXT,
  UNIQUE(business_id, snapshot_date)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_business ON snapshots(business_id, snapshot_date);
CREATE TABLE IF NOT EXISTS scrape_sessions (
  id                 TEXT PRIMARY KEY,
  kind               TEXT NOT NULL CHECK (kind IN ('initial','periodic','manual')),
  target_region      TEXT NOT NULL,
  target_categories  TEXT,
  started_at         TEXT NOT NULL,
  completed_at       TEXT,
  api_calls_count    INTEGER NOT NULL DEFAULT 0,
  estimated_cost     REAL NOT NULL DEFAULT 0,
  businesses_found   INTEGER NOT NULL DEFAULT 0,
  businesses_new     INTEGER NOT NULL DEFAULT 0,
  businesses_updated INTEGER NOT NULL DEFAULT 0,
  status             TEXT NOT NULL CHECK (status IN ('running','completed','failed','cancelled')),
  error_log          TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON scrape_sessions(started_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
