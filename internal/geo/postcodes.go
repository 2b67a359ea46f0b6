package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// HTTPLocator resolves postcodes through a postcodes.io-compatible API.
// Lookups are cached in-process and rate limited to MinInterval between
// outbound requests.
type HTTPLocator struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]Coordinate
}

type postcodeResponse struct {
	Status int           `json:"status"`
	Result *postcodeItem `json:"result"`
}

type postcodeItem struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (l *HTTPLocator) Locate(ctx context.Context, postcode string) (Coordinate, error) {
	if l.Client == nil {
		l.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if l.BaseURL == "" {
		l.BaseURL = "https://api.postcodes.io"
	}
	if l.UserAgent == "" {
		l.UserAgent = "compliance-connect"
	}
	if l.MinInterval <= 0 {
		l.MinInterval = 100 * time.Millisecond
	}

	key := NormalizePostcode(postcode)

	l.mu.Lock()
	if l.cache == nil {
		l.cache = map[string]Coordinate{}
	}
	if cached, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return cached, nil
	}
	sleepFor := time.Until(l.lastReqAt.Add(l.MinInterval))
	if sleepFor > 0 {
		l.mu.Unlock()
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		l.mu.Lock()
	}
	l.lastReqAt = time.Now()
	l.mu.Unlock()

	endpoint := fmt.Sprintf("%s/postcodes/%s", l.BaseURL, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", l.UserAgent)

	resp, err := l.Client.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Coordinate{}, fmt.Errorf("%w: http status %s", ErrUnavailable, resp.Status)
	}

	var body postcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if body.Result == nil || body.Result.Latitude == nil || body.Result.Longitude == nil {
		return Coordinate{}, fmt.Errorf("%w: postcode %q not found", ErrUnavailable, key)
	}

	coord := Coordinate{Lat: *body.Result.Latitude, Lon: *body.Result.Longitude}

	l.mu.Lock()
	l.cache[key] = coord
	l.mu.Unlock()

	return coord, nil
}
