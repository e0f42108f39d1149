package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const nearbyBody = `{
  "status": "OK",
  "results": [
    {
      "place_id": "ChIJabc123",
      "name": "Café Nuevo",
      "types": ["cafe", "food"],
      "vicinity": "Calle Mayor 1",
      "geometry": {"location": {"lat": 40.4151, "lng": -3.7073}},
      "rating": 4.6,
      "user_ratings_total": 7,
      "photos": [{"photo_reference": "a"}, {"photo_reference": "b"}]
    },
    {
      "name": "",
      "geometry": {"location": {"lat": 0, "lng": 0}}
    }
  ]
}`

func TestNearbyParsesAndDropsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") != "cafe" {
			t.Errorf("keyword not forwarded: %s", r.URL.RawQuery)
		}
		w.Write([]byte(nearbyBody))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", 1)
	got, err := c.Nearby(context.Background(), 40.4151, -3.7073, 1250, "cafe")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 parsed place (malformed dropped), got %d", len(got))
	}
	p := got[0]
	if p.PlaceID != "ChIJabc123" || p.Name != "Café Nuevo" || p.Category != "cafe" {
		t.Errorf("bad parse: %+v", p)
	}
	if p.ReviewCount != 7 || p.PhotoCount != 2 {
		t.Errorf("bad counts: %+v", p)
	}
}

func TestNearbyRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OVER_QUERY_LIMIT"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", 1)
	_, err := c.Nearby(context.Background(), 0, 0, 100, "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

// A directory that answers HTTP 429 until the retry budget runs out must
// still surface as rate limited, not as an unavailable directory.
func TestNearbyPersistentHTTP429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", 1)
	_, err := c.Nearby(context.Background(), 0, 0, 100, "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for persistent 429, got %v", err)
	}
}

func TestDetailsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "NOT_FOUND"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", 1)
	_, err := c.Details(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
