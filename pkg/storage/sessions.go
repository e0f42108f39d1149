package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession inserts a new session row in the running state.
func (d *DB) CreateSession(ctx context.Context, s Session) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO scrape_sessions (id, kind, target_region, target_categories, started_at, status)
VALUES (?,?,?,?,?,?)`,
		s.ID, s.Kind, s.TargetRegion, s.TargetCategories, fmtTime(s.StartedAt), StatusRunning)
	return err
}

// SessionDelta is a batch of counter increments flushed after a scan point.
type SessionDelta struct {
	APICalls int64
	Cost     float64
	Found    int64
	New      int64
	Updated  int64
}

// BumpSessionCounters applies a delta with a single additive UPDATE, so
// concurrent scan point completions never lose increments.
func (d *DB) BumpSessionCounters(ctx context.Context, id string, delta SessionDelta) error {
	_, err := d.sql.ExecContext(ctx, `
UPDATE scrape_sessions SET
  api_calls_count    = api_calls_count + ?,
  estimated_cost     = estimated_cost + ?,
  businesses_found   = businesses_found + ?,
  businesses_new     = businesses_new + ?,
  businesses_updated = businesses_updated + ?
WHERE id = ?`,
		delta.APICalls, delta.Cost, delta.Found, delta.New, delta.Updated, id)
	return err
}

// FinishSession moves a running session into a terminal state. The guard on
// status makes terminal states final: finishing an already-finished session
// is a no-op that reports ErrNotFound.
func (d *DB) FinishSession(ctx context.Context, id, status, errorLog string, completedAt time.Time) error {
	if status != StatusCompleted && status != StatusFailed && status != StatusCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	res, err := d.sql.ExecContext(ctx, `
UPDATE scrape_sessions SET status = ?, error_log = ?, completed_at = ?
WHERE id = ? AND status = ?`,
		status, nullIfEmpty(errorLog), fmtTime(completedAt), id, StatusRunning)
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

const sessionColumns = `id, kind, target_region, target_categories, started_at, completed_at,
api_calls_count, estimated_cost, businesses_found, businesses_new, businesses_updated, status, error_log`

// GetSession returns one session by id.
func (d *DB) GetSession(ctx context.Context, id string) (Session, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM scrape_sessions WHERE id = ?", id)
	return scanSession(row)
}

// ListSessions returns sessions, newest first.
func (d *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM scrape_sessions ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		s           Session
		categories  sql.NullString
		completedAt sql.NullString
		errorLog    sql.NullString
		startedAt   string
	)
	err := row.Scan(&s.ID, &s.Kind, &s.TargetRegion, &categories, &startedAt, &completedAt,
		&s.APICallsCount, &s.EstimatedCost, &s.BusinessesFound, &s.BusinessesNew,
		&s.BusinessesUpdated, &s.Status, &errorLog)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.TargetCategories = categories.String
	s.ErrorLog = errorLog.String
	s.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		s.CompletedAt = &t
	}
	return s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
