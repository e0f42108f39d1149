// Package scanner orchestrates scan sessions: it walks the coverage plan
// for a region, queries the places directory under concurrency and budget
// limits, and feeds every raw result through dedup, snapshotting and
// indicator scoring.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bizradar/pkg/catalog"
	"bizradar/pkg/geo"
	"bizradar/pkg/indicators"
	"bizradar/pkg/keywords"
	"bizradar/pkg/places"
	"bizradar/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// ErrBudgetExceeded marks a session aborted by its call/cost cap.
var ErrBudgetExceeded = errors.New("scanner: session budget exceeded")

// Config wires a Tracker. DB, Client and Hierarchy are required.
type Config struct {
	DB         *storage.DB
	Client     places.Client
	Hierarchy  *geo.Hierarchy
	Planner    *geo.Planner // nil = geo.NewPlanner()
	Keywords   *keywords.Mapping
	Indicators indicators.Config

	Concurrency   int     // concurrent scan points, defaults to 4
	MinIntervalMs int     // minimum gap between directory calls
	Overlap       float64 // grid overlap fraction, defaults to 0.3
	ErrorRateMax  float64 // point failure rate that fails the session, defaults to 0.5

	Log Logger           // optional; nil = no logging
	Now func() time.Time // test hook
}

// Tracker runs and supervises scan sessions. One Tracker can run several
// sessions; each gets its own cancel flag and counters.
type Tracker struct {
	cfg    Config
	dedup  *catalog.Deduplicator
	snaps  *catalog.SnapshotManager
	engine *indicators.Engine

	mu     sync.Mutex
	active map[string]*run

	// rate gate shared across all sessions: the directory has one limit,
	// not one per session.
	gateMu   sync.Mutex
	lastCall time.Time
}

// run is the in-memory state of one running session.
type run struct {
	id        string
	budget    Budget
	cancelled atomic.Bool

	apiCalls     atomic.Int64
	pointsSeen   atomic.Int64
	pointsFailed atomic.Int64
}

func New(cfg Config) (*Tracker, error) {
	if cfg.DB == nil || cfg.Client == nil || cfg.Hierarchy == nil {
		return nil, fmt.Errorf("scanner: DB, Client and Hierarchy are required")
	}
	if cfg.Planner == nil {
		cfg.Planner = geo.NewPlanner()
	}
	if cfg.Keywords == nil {
		cfg.Keywords = keywords.NewMapping()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = 0.3
	}
	if cfg.ErrorRateMax <= 0 {
		cfg.ErrorRateMax = 0.5
	}
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := cfg.Indicators.Validate(); err != nil {
		// Zero-value config means the caller skipped it; fall back.
		cfg.Indicators = indicators.DefaultConfig()
	}
	return &Tracker{
		cfg:    cfg,
		dedup:  catalog.NewDeduplicator(cfg.DB),
		snaps:  catalog.NewSnapshotManager(cfg.DB),
		engine: indicators.NewEngine(cfg.Indicators),
		active: make(map[string]*run),
	}, nil
}

// Start creates a session and runs it in the background, returning its id
// immediately. Use Status to follow progress and Cancel to stop it.
func (t *Tracker) Start(ctx context.Context, regionID string, categories []string, kind string, budget Budget) (string, error) {
	id, r, err := t.create(ctx, regionID, categories, kind, budget)
	if err != nil {
		return "", err
	}
	go func() {
		if err := t.execute(context.WithoutCancel(ctx), r, regionID, categories); err != nil {
			t.cfg.Log.Errorf("session %s: %v", id, err)
		}
	}()
	return id, nil
}

// Run creates a session and blocks until it reaches a terminal state.
func (t *Tracker) Run(ctx context.Context, regionID string, categories []string, kind string, budget Budget) (storage.Session, error) {
	id, r, err := t.create(ctx, regionID, categories, kind, budget)
	if err != nil {
		return storage.Session{}, err
	}
	if err := t.execute(ctx, r, regionID, categories); err != nil {
		t.cfg.Log.Errorf("session %s: %v", id, err)
	}
	return t.Status(ctx, id)
}

func (t *Tracker) create(ctx context.Context, regionID string, categories []string, kind string, budget Budget) (string, *run, error) {
	if kind != "initial" && kind != "periodic" && kind != "manual" {
		return "", nil, fmt.Errorf("scanner: invalid session kind %q", kind)
	}
	if _, ok := t.cfg.Hierarchy.Region(regionID); !ok {
		return "", nil, fmt.Errorf("scanner: unknown region %q", regionID)
	}
	id := uuid.NewString()
	s := storage.Session{
		ID:               id,
		Kind:             kind,
		TargetRegion:     regionID,
		TargetCategories: strings.Join(categories, ","),
		StartedAt:        t.cfg.Now(),
	}
	if err := t.cfg.DB.CreateSession(ctx, s); err != nil {
		return "", nil, err
	}
	r := &run{id: id, budget: budget}
	t.mu.Lock()
	t.active[id] = r
	t.mu.Unlock()
	return id, r, nil
}

// execute processes every scan point of the session's coverage plan and
// moves the session to its terminal state.
func (t *Tracker) execute(ctx context.Context, r *run, regionID string, categories []string) error {
	defer func() {
		t.mu.Lock()
		delete(t.active, r.id)
		t.mu.Unlock()
	}()

	points, err := t.plan(regionID, categories)
	if err != nil {
		return t.finish(ctx, r, storage.StatusFailed, err.Error())
	}
	t.cfg.Log.Infof("session %s: %d scan points over region %s", r.id, len(points), regionID)

	pointCh := make(chan geo.ScanPoint)
	var wg sync.WaitGroup
	var termMu sync.Mutex
	var termErr error // first fatal condition wins

	setFatal := func(err error) {
		termMu.Lock()
		if termErr == nil {
			termErr = err
		}
		termMu.Unlock()
	}
	fatal := func() error {
		termMu.Lock()
		defer termMu.Unlock()
		return termErr
	}

	for i := 0; i < t.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sp := range pointCh {
				if err := t.processPoint(ctx, r, sp); err != nil {
					if errors.Is(err, ErrBudgetExceeded) {
						setFatal(err)
						continue
					}
					r.pointsFailed.Add(1)
					t.cfg.Log.Warnf("session %s: scan point (%.4f,%.4f) failed: %v", r.id, sp.Lat, sp.Lng, err)
				}
				seen := r.pointsSeen.Add(1)
				failed := r.pointsFailed.Load()
				if seen >= 5 && float64(failed)/float64(seen) > t.cfg.ErrorRateMax {
					setFatal(fmt.Errorf("error rate %.0f%% over threshold", 100*float64(failed)/float64(seen)))
				}
			}
		}()
	}

	// Dispatch in planner order. Cancellation and fatal conditions are
	// checked between scan points: in-flight points run to completion, no
	// new ones are handed out.
dispatch:
	for _, sp := range points {
		if r.cancelled.Load() || fatal() != nil {
			break dispatch
		}
		if !r.budget.allows(r.apiCalls.Load() + 1) {
			setFatal(ErrBudgetExceeded)
			break dispatch
		}
		select {
		case pointCh <- sp:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(pointCh)
	wg.Wait()

	switch {
	case fatal() != nil:
		return t.finish(ctx, r, storage.StatusFailed, fatal().Error())
	case r.cancelled.Load() || ctx.Err() != nil:
		return t.finish(ctx, r, storage.StatusCancelled, "")
	default:
		return t.finish(ctx, r, storage.StatusCompleted, "")
	}
}

// plan expands a region into its ordered scan point sequence: localities by
// priority ascending, row-major inside each locality.
func (t *Tracker) plan(regionID string, categories []string) ([]geo.ScanPoint, error) {
	targets, err := t.cfg.Hierarchy.ScanTargets(regionID)
	if err != nil {
		return nil, err
	}
	var points []geo.ScanPoint
	for _, region := range targets {
		var terms []string
		for _, cat := range categories {
			terms = append(terms, t.cfg.Keywords.TermsFor(cat, region.Name)...)
		}
		if len(terms) == 0 {
			terms = []string{""} // plain nearby search, no keyword filter
		}
		points = append(points, t.cfg.Planner.Plan(region, t.cfg.Overlap, terms)...)
	}
	return points, nil
}

// EstimateCalls approximates how many directory calls a session would
// issue, for pre-flight budget checks and CLI output.
func (t *Tracker) EstimateCalls(regionID string, categories []string) (int64, error) {
	targets, err := t.cfg.Hierarchy.ScanTargets(regionID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, region := range targets {
		terms := 0
		for _, cat := range categories {
			terms += len(t.cfg.Keywords.TermsFor(cat, region.Name))
		}
		if terms == 0 {
			terms = 1
		}
		cells := geo.EstimateCells(region.RadiusM, t.cfg.Planner.GridSizeFor(region.Priority), t.cfg.Overlap)
		total += int64(cells * terms)
	}
	return total, nil
}

// processPoint issues one directory call per query term and pushes every
// raw result through the ingest pipeline. Returns ErrBudgetExceeded when
// the budget ran out mid-point; any other error marks the point failed.
func (t *Tracker) processPoint(ctx context.Context, r *run, sp geo.ScanPoint) error {
	var delta storage.SessionDelta
	seen := make(map[string]bool)
	var pointErr error

	for _, term := range sp.QueryTerms {
		// Reserve the call slot before issuing it; concurrent workers
		// racing past the cap roll their reservation back.
		if !r.budget.allows(r.apiCalls.Add(1)) {
			r.apiCalls.Add(-1)
			pointErr = ErrBudgetExceeded
			break
		}
		t.rateGate()
		delta.APICalls++
		delta.Cost += nearbyCallCostUSD

		raws, err := t.cfg.Client.Nearby(ctx, sp.Lat, sp.Lng, sp.RadiusM, term)
		if err != nil {
			if errors.Is(err, places.ErrRateLimited) {
				// Backoff already happened inside the client; a rate limit
				// here is not a point failure.
				t.cfg.Log.Warnf("session %s: rate limited at (%.4f,%.4f)", r.id, sp.Lat, sp.Lng)
				continue
			}
			pointErr = err
			continue
		}

		for _, raw := range raws {
			key := raw.PlaceID
			if key == "" {
				key = "name:" + storage.NormalizeName(raw.Name)
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			isNew, err := t.ingest(ctx, raw, sp.RegionID)
			if err != nil {
				if errors.Is(err, places.ErrMalformed) {
					t.cfg.Log.Debugf("session %s: dropped malformed record %q", r.id, raw.Name)
					continue
				}
				t.cfg.Log.Warnf("session %s: ingest %q failed: %v", r.id, raw.Name, err)
				continue
			}
			delta.Found++
			if isNew {
				delta.New++
			} else {
				delta.Updated++
			}
		}
	}

	if err := t.cfg.DB.BumpSessionCounters(ctx, r.id, delta); err != nil {
		t.cfg.Log.Warnf("session %s: counter flush failed: %v", r.id, err)
	}
	return pointErr
}

// ingest runs one raw record through dedup, snapshotting and scoring.
func (t *Tracker) ingest(ctx context.Context, raw places.RawPlace, regionID string) (bool, error) {
	now := t.cfg.Now()
	b, isNew, err := t.dedup.Resolve(ctx, raw, regionID, now)
	if err != nil {
		return false, err
	}

	metrics := catalog.Metrics{
		ReviewCount:      raw.ReviewCount,
		Rating:           raw.Rating,
		PhotoCount:       raw.PhotoCount,
		OldestReviewDate: raw.OldestReviewDate,
	}
	snap, prev, err := t.snaps.Record(ctx, b.ID, metrics, now)
	if err != nil {
		return false, err
	}

	ind := t.engine.Compute(b, prev, metrics, now)
	if err := t.cfg.DB.SetIndicators(ctx, b.ID, ind.JSON(), ind.Confidence); err != nil {
		return false, err
	}
	// Freeze the indicator state into today's snapshot for offline audit.
	_, err = t.cfg.DB.UpsertSnapshot(ctx, b.ID, snap.Date, storage.SnapshotInput{
		ReviewCount: metrics.ReviewCount,
		Rating:      metrics.Rating,
		PhotoCount:  metrics.PhotoCount,
		Indicators:  ind.JSON(),
	})
	return isNew, err
}

// rateGate enforces the minimum interval between directory calls.
func (t *Tracker) rateGate() {
	if t.cfg.MinIntervalMs <= 0 {
		return
	}
	t.gateMu.Lock()
	defer t.gateMu.Unlock()
	minGap := time.Duration(t.cfg.MinIntervalMs) * time.Millisecond
	if wait := minGap - time.Since(t.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	t.lastCall = time.Now()
}

func (t *Tracker) finish(ctx context.Context, r *run, status, errorLog string) error {
	if err := t.cfg.DB.FinishSession(ctx, r.id, status, errorLog, t.cfg.Now()); err != nil {
		return fmt.Errorf("finish session %s: %w", r.id, err)
	}
	t.cfg.Log.Infof("session %s: %s", r.id, status)
	return nil
}

// Cancel requests cooperative cancellation of a running session. In-flight
// scan points finish; no new ones are dispatched.
func (t *Tracker) Cancel(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	r, ok := t.active[sessionID]
	t.mu.Unlock()
	if ok {
		r.cancelled.Store(true)
		return nil
	}
	// Not running in this process: only a stale 'running' row can be moved.
	if err := t.cfg.DB.FinishSession(ctx, sessionID, storage.StatusCancelled, "", t.cfg.Now()); err != nil {
		return fmt.Errorf("cancel session %s: %w", sessionID, err)
	}
	return nil
}

// Status returns the stored state of a session.
func (t *Tracker) Status(ctx context.Context, sessionID string) (storage.Session, error) {
	return t.cfg.DB.GetSession(ctx, sessionID)
}

// List returns recent sessions, newest first.
func (t *Tracker) List(ctx context.Context, limit int) ([]storage.Session, error) {
	return t.cfg.DB.ListSessions(ctx, limit)
}
