package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

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

func rawCafe() places.RawPlace {
	return places.RawPlace{
		PlaceID:     "ChIJcafe1",
		Name:        "Café Roma",
		Category:    "cafe",
		Address:     "Calle Mayor 1",
		Lat:         40.4151,
		Lng:         -3.7073,
		Rating:      4.5,
		ReviewCount: 5,
	}
}

func TestResolveIdempotent(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	const n = 4
	var id int64
	for i := 0; i < n; i++ {
		b, isNew, err := d.Resolve(ctx, rawCafe(), "centro", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if (i == 0) != isNew {
			t.Fatalf("ingest %d: isNew = %v", i, isNew)
		}
		if i == 0 {
			id = b.ID
		} else if b.ID != id {
			t.Fatalf("re-ingest created new row: %d vs %d", b.ID, id)
		}
	}

	b, err := db.GetBusinessByPlaceID(ctx, "ChIJcafe1")
	if err != nil {
		t.Fatal(err)
	}
	if b.ScrapeCount != n {
		t.Errorf("scrape_count = %d, want %d", b.ScrapeCount, n)
	}
	if b.RegionID != "centro" {
		t.Errorf("region not attached at ingestion: %q", b.RegionID)
	}
}

func TestResolveFuzzyMergesNearbySameName(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	first, isNew, err := d.Resolve(ctx, rawCafe(), "centro", time.Now())
	if err != nil || !isNew {
		t.Fatalf("seed: isNew=%v err=%v", isNew, err)
	}

	// Directory re-indexed the place and dropped its id; same name, ~20m away.
	raw := rawCafe()
	raw.PlaceID = ""
	raw.Lat += 0.00015
	raw.ReviewCount = 9

	got, isNew, err := d.Resolve(ctx, raw, "centro", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Fatal("fuzzy match should not create a new row")
	}
	if got.ID != first.ID {
		t.Fatalf("fuzzy match resolved to wrong row: %d vs %d", got.ID, first.ID)
	}
	if got.ExternalPlaceID != "ChIJcafe1" {
		t.Errorf("stored identity rewritten: %s", got.ExternalPlaceID)
	}
	if got.ReviewCount != 9 {
		t.Errorf("mutable fields not updated: %+v", got)
	}
}

// Directory re-indexing can hand a known place a fresh id. The record still
// carries the same name and coordinates, so it must merge into the stored
// row instead of minting a duplicate.
func TestResolveMergesChangedExternalID(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	first, isNew, err := d.Resolve(ctx, rawCafe(), "centro", time.Now())
	if err != nil || !isNew {
		t.Fatalf("seed: isNew=%v err=%v", isNew, err)
	}

	raw := rawCafe()
	raw.PlaceID = "ChIJcafe1-REINDEXED"
	raw.ReviewCount = 11

	got, isNew, err := d.Resolve(ctx, raw, "centro", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Fatal("changed-id record minted a duplicate business")
	}
	if got.ID != first.ID {
		t.Fatalf("changed-id record resolved to wrong row: %d vs %d", got.ID, first.ID)
	}
	if got.ExternalPlaceID != "ChIJcafe1" {
		t.Errorf("stored identity rewritten: %s", got.ExternalPlaceID)
	}
	if got.ReviewCount != 11 {
		t.Errorf("mutable fields not updated: %+v", got)
	}
}

// An unknown id with no nearby namesake is a genuinely new place and keeps
// its real directory id, not a surrogate.
func TestResolveUnknownIDWithoutMatchCreatesWithRealID(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	if _, _, err := d.Resolve(ctx, rawCafe(), "centro", time.Now()); err != nil {
		t.Fatal(err)
	}

	raw := rawCafe()
	raw.PlaceID = "ChIJcafe2"
	raw.Name = "Café Milano"
	raw.Lat += 0.0045

	got, isNew, err := d.Resolve(ctx, raw, "centro", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("distinct place with its own id was merged")
	}
	if got.ExternalPlaceID != "ChIJcafe2" {
		t.Errorf("directory id replaced: %s", got.ExternalPlaceID)
	}
}

func TestResolveFuzzyKeepsDistinctBusinessesApart(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	if _, _, err := d.Resolve(ctx, rawCafe(), "centro", time.Now()); err != nil {
		t.Fatal(err)
	}

	// Same name, 500m away: a different real-world place.
	raw := rawCafe()
	raw.PlaceID = ""
	raw.Lat += 0.0045

	_, isNew, err := d.Resolve(ctx, raw, "centro", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("distinct business 500m away was merged")
	}
}

func TestResolveConcurrentSameIdentity(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	newCount := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := d.Resolve(ctx, rawCafe(), "centro", time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			newCount <- isNew
		}()
	}
	wg.Wait()
	close(newCount)

	creates := 0
	for isNew := range newCount {
		if isNew {
			creates++
		}
	}
	if creates != 1 {
		t.Fatalf("concurrent resolve created %d rows, want 1", creates)
	}
}

func TestSnapshotManagerRecord(t *testing.T) {
	db := openTestDB(t)
	d := NewDeduplicator(db)
	m := NewSnapshotManager(db)
	ctx := context.Background()

	b, _, err := d.Resolve(ctx, rawCafe(), "centro", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	day1 := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	snap1, prev, err := m.Record(ctx, b.ID, Metrics{ReviewCount: 5, Rating: 4.5}, day1)
	if err != nil {
		t.Fatal(err)
	}
	if prev != nil {
		t.Fatal("first snapshot should have no predecessor")
	}

	// Same-day re-scan: no duplicate.
	snapDup, _, err := m.Record(ctx, b.ID, Metrics{ReviewCount: 6, Rating: 4.5}, day1.Add(5*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if snapDup.ID != snap1.ID {
		t.Fatal("same-day snapshot duplicated")
	}

	day2 := day1.AddDate(0, 1, 0)
	snap2, prev, err := m.Record(ctx, b.ID, Metrics{ReviewCount: 40, Rating: 4.7}, day2)
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || prev.ID != snap1.ID {
		t.Fatalf("expected day1 snapshot as predecessor, got %+v", prev)
	}
	if prev.ReviewCount != 6 {
		t.Errorf("predecessor metrics wrong: %+v", prev)
	}
	if snap2.Date <= prev.Date {
		t.Errorf("snapshot dates not ordered: %s vs %s", snap2.Date, prev.Date)
	}
}
