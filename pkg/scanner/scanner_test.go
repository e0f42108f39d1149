package scanner

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bizradar/pkg/geo"
	"bizradar/pkg/places"
	"bizradar/pkg/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testHierarchy builds a single-locality hierarchy. Priority 2 regions use
// a 2500m grid, so radiusM <= 1250 plans exactly one scan point and
// radiusM = 4000 with priority 3 plans nine.
func testHierarchy(t *testing.T, radiusM float64, priority int) *geo.Hierarchy {
	t.Helper()
	h := geo.NewHierarchy()
	for _, r := range []geo.Region{
		{ID: "top", Kind: geo.KindTop, Name: "Top", Lat: 40.4, Lng: -3.7, RadiusM: 50000, Priority: 1},
		{ID: "sub", Kind: geo.KindSub, Name: "Sub", ParentID: "top", Lat: 40.4, Lng: -3.7, RadiusM: 20000, Priority: 1},
		{ID: "loc", Kind: geo.KindLocality, Name: "Loc", ParentID: "sub", Lat: 40.4, Lng: -3.7, RadiusM: radiusM, Priority: priority},
	} {
		if err := h.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

// fakeClient scripts directory responses. resultsFor receives the 1-based
// call number.
type fakeClient struct {
	mu         sync.Mutex
	calls      int
	resultsFor func(call int) ([]places.RawPlace, error)
	onCall     func(call int)
}

func (f *fakeClient) Nearby(ctx context.Context, lat, lng, radiusM float64, query string) ([]places.RawPlace, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.resultsFor == nil {
		return nil, nil
	}
	return f.resultsFor(n)
}

func (f *fakeClient) Details(ctx context.Context, placeID string) (places.RawPlace, error) {
	return places.RawPlace{}, places.ErrNotFound
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rawPlace(id string, reviews int) places.RawPlace {
	return places.RawPlace{
		PlaceID:     id,
		Name:        "Place " + id,
		Category:    "cafe",
		Lat:         40.4001,
		Lng:         -3.7001,
		Rating:      4.4,
		ReviewCount: reviews,
	}
}

func newTestTracker(t *testing.T, db *storage.DB, h *geo.Hierarchy, client places.Client, now *time.Time) *Tracker {
	t.Helper()
	tr, err := New(Config{
		DB:          db,
		Client:      client,
		Hierarchy:   h,
		Concurrency: 1,
		Now:         func() time.Time { return *now },
	})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestRunCompletesAndCounts(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		return []places.RawPlace{rawPlace("A", 5), rawPlace("B", 20)}, nil
	}}
	tr := newTestTracker(t, db, testHierarchy(t, 500, 2), client, &now)

	sess, err := tr.Run(context.Background(), "loc", nil, "manual", Budget{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != storage.StatusCompleted {
		t.Fatalf("status = %s, want completed", sess.Status)
	}
	if sess.APICallsCount != 1 {
		t.Errorf("api calls = %d, want 1", sess.APICallsCount)
	}
	if sess.BusinessesFound != 2 || sess.BusinessesNew != 2 || sess.BusinessesUpdated != 0 {
		t.Errorf("counters wrong: %+v", sess)
	}
	if sess.EstimatedCost <= 0 {
		t.Error("estimated cost not accumulated")
	}
	if sess.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

// Second ingestion a month later: same business rows, two snapshots, and a
// review spike on the second pass.
func TestRescanDetectsReviewSpike(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	reviews := 5
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		return []places.RawPlace{rawPlace("X", reviews)}, nil
	}}
	tr := newTestTracker(t, db, testHierarchy(t, 500, 2), client, &now)
	ctx := context.Background()

	if _, err := tr.Run(ctx, "loc", nil, "initial", Budget{}); err != nil {
		t.Fatal(err)
	}

	now = now.AddDate(0, 1, 0)
	reviews = 40
	sess, err := tr.Run(ctx, "loc", nil, "periodic", Budget{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.BusinessesNew != 0 || sess.BusinessesUpdated != 1 {
		t.Fatalf("re-scan should update, not create: %+v", sess)
	}

	b, err := db.GetBusinessByPlaceID(ctx, "X")
	if err != nil {
		t.Fatal(err)
	}
	if b.ScrapeCount != 2 {
		t.Errorf("scrape_count = %d, want 2", b.ScrapeCount)
	}
	if !strings.Contains(b.Indicators, `"review_spike":true`) {
		t.Errorf("review spike not flagged: %s", b.Indicators)
	}
	snaps, err := db.ListSnapshots(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
}

// Budget of 4 calls against a 9-point plan: the session fails before
// dispatching call 5, keeping the partial counters.
func TestBudgetExceededFailsSession(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		return []places.RawPlace{rawPlace("A", 5)}, nil
	}}
	tr := newTestTracker(t, db, testHierarchy(t, 4000, 3), client, &now)

	sess, err := tr.Run(context.Background(), "loc", nil, "manual", Budget{MaxCalls: 4})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != storage.StatusFailed {
		t.Fatalf("status = %s, want failed", sess.Status)
	}
	if !strings.Contains(sess.ErrorLog, "budget") {
		t.Errorf("error log should mention the budget: %q", sess.ErrorLog)
	}
	if client.callCount() != 4 {
		t.Errorf("made %d calls, want exactly 4", client.callCount())
	}
	if sess.BusinessesFound == 0 {
		t.Error("work done before the cutoff should be preserved")
	}
}

// With several workers racing on the same counter, the reservation must
// still keep the call total at the cap.
func TestBudgetHoldsUnderConcurrency(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		return []places.RawPlace{rawPlace("A", 5)}, nil
	}}
	tr, err := New(Config{
		DB:          db,
		Client:      client,
		Hierarchy:   testHierarchy(t, 4000, 3),
		Concurrency: 4,
		Now:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := tr.Run(context.Background(), "loc", nil, "manual", Budget{MaxCalls: 4})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != storage.StatusFailed {
		t.Fatalf("status = %s, want failed", sess.Status)
	}
	if got := client.callCount(); got > 4 {
		t.Errorf("made %d calls, budget allows at most 4", got)
	}
	if sess.APICallsCount > 4 {
		t.Errorf("recorded %d calls, budget allows at most 4", sess.APICallsCount)
	}
}

// Cancelling mid-run leaves ingested rows intact and ends in cancelled,
// not failed.
func TestCancelPreservesProgress(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	firstCallStarted := make(chan struct{})
	proceed := make(chan struct{})
	client := &fakeClient{
		onCall: func(call int) {
			if call == 1 {
				close(firstCallStarted)
				<-proceed
			}
		},
		resultsFor: func(call int) ([]places.RawPlace, error) {
			return []places.RawPlace{rawPlace("A", 5)}, nil
		},
	}
	tr := newTestTracker(t, db, testHierarchy(t, 4000, 3), client, &now)
	ctx := context.Background()

	id, err := tr.Start(ctx, "loc", nil, "manual", Budget{})
	if err != nil {
		t.Fatal(err)
	}
	<-firstCallStarted
	if err := tr.Cancel(ctx, id); err != nil {
		t.Fatal(err)
	}
	close(proceed)

	sess := waitTerminal(t, tr, id)
	if sess.Status != storage.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", sess.Status)
	}
	// The in-flight point was allowed to finish and its work persisted.
	if _, err := db.GetBusinessByPlaceID(ctx, "A"); err != nil {
		t.Errorf("ingested business lost after cancel: %v", err)
	}
	if client.callCount() >= 9 {
		t.Errorf("cancel did not stop dispatch: %d calls", client.callCount())
	}
}

// Scan point failures are skipped until the failure rate crosses the
// threshold, then the session fails.
func TestErrorRateThreshold(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		return nil, places.ErrUnavailable
	}}
	tr := newTestTracker(t, db, testHierarchy(t, 4000, 3), client, &now)

	sess, err := tr.Run(context.Background(), "loc", nil, "manual", Budget{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != storage.StatusFailed {
		t.Fatalf("status = %s, want failed", sess.Status)
	}
	if !strings.Contains(sess.ErrorLog, "error rate") {
		t.Errorf("error log should mention the error rate: %q", sess.ErrorLog)
	}
}

// A single failing point among many is logged and skipped, not fatal.
func TestIsolatedPointFailureIsSkipped(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{resultsFor: func(call int) ([]places.RawPlace, error) {
		if call == 3 {
			return nil, places.ErrUnavailable
		}
		return []places.RawPlace{rawPlace("A", 5)}, nil
	}}
	tr := newTestTracker(t, db, testHierarchy(t, 4000, 3), client, &now)

	sess, err := tr.Run(context.Background(), "loc", nil, "manual", Budget{})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != storage.StatusCompleted {
		t.Fatalf("one bad point out of nine should not fail the session: %s (%s)", sess.Status, sess.ErrorLog)
	}
	if sess.APICallsCount != 9 {
		t.Errorf("api calls = %d, want 9", sess.APICallsCount)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	tr := newTestTracker(t, db, testHierarchy(t, 500, 2), &fakeClient{}, &now)
	ctx := context.Background()

	if _, err := tr.Start(ctx, "nope", nil, "manual", Budget{}); err == nil {
		t.Error("unknown region must be rejected")
	}
	if _, err := tr.Start(ctx, "loc", nil, "hourly", Budget{}); err == nil {
		t.Error("invalid session kind must be rejected")
	}
}

func waitTerminal(t *testing.T, tr *Tracker, id string) storage.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := tr.Status(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if sess.Status != storage.StatusRunning {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal state")
	return storage.Session{}
}
