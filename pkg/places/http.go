package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// HTTPClient talks to a Google-Places-shaped JSON directory. Transient 5xx
// and 429 responses are retried with exponential backoff by the underlying
// retryable client; what comes out of here is already past its retry budget.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// NewHTTPClient builds a directory client. retryMax bounds retry attempts
// per call; 0 falls back to 3.
func NewHTTPClient(baseURL, apiKey string, retryMax int) *HTTPClient {
	if retryMax <= 0 {
		retryMax = 3
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.Logger = nil
	// Hand back the final response when retries are exhausted, so a 429
	// that never clears maps to ErrRateLimited instead of a generic
	// transport failure.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 20 * time.Second
	return &HTTPClient{baseURL: baseURL, apiKey: apiKey, http: rc}
}

func (c *HTTPClient) Nearby(ctx context.Context, lat, lng, radiusM float64, query string) ([]RawPlace, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(int(radiusM)))
	if query != "" {
		params.Set("keyword", query)
	}
	params.Set("key", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"/nearbysearch/json?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if err := checkStatus(body); err != nil {
		return nil, err
	}

	var out []RawPlace
	results := gjson.GetBytes(body, "results")
	for _, r := range results.Array() {
		p, err := parsePlace(r)
		if err != nil {
			// One bad record never fails the whole page.
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *HTTPClient) Details(ctx context.Context, placeID string) (RawPlace, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"/details/json?"+params.Encode())
	if err != nil {
		return RawPlace{}, err
	}
	if err := checkStatus(body); err != nil {
		return RawPlace{}, err
	}
	return parsePlace(gjson.GetBytes(body, "result"))
}

func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if res == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case res.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}
	return io.ReadAll(res.Body)
}

// checkStatus maps the directory's in-body status field to the error
// taxonomy. Directories in this family report errors with HTTP 200.
func checkStatus(body []byte) error {
	switch gjson.GetBytes(body, "status").Str {
	case "", "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT":
		return ErrRateLimited
	case "NOT_FOUND", "INVALID_REQUEST":
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %s", ErrUnavailable, gjson.GetBytes(body, "status").Str)
	}
}

func parsePlace(r gjson.Result) (RawPlace, error) {
	p := RawPlace{
		PlaceID:     r.Get("place_id").Str,
		Name:        r.Get("name").Str,
		Category:    r.Get("types.0").Str,
		Address:     r.Get("vicinity").Str,
		Lat:         r.Get("geometry.location.lat").Float(),
		Lng:         r.Get("geometry.location.lng").Float(),
		Rating:      r.Get("rating").Float(),
		ReviewCount: int(r.Get("user_ratings_total").Int()),
		PhotoCount:  int(r.Get("photos.#").Int()),
		Website:     r.Get("website").Str,
	}
	if p.Address == "" {
		p.Address = r.Get("formatted_address").Str
	}
	if hours := r.Get("opening_hours.weekday_text"); hours.Exists() {
		p.OpeningHours = hours.Raw
	}
	if ts := r.Get("reviews.0.time").Int(); ts > 0 {
		p.OldestReviewDate = time.Unix(ts, 0).UTC()
	}
	if p.Name == "" || (p.Lat == 0 && p.Lng == 0) {
		return RawPlace{}, fmt.Errorf("%w: missing name or coordinates", ErrMalformed)
	}
	return p, nil
}
