package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

const (
	DefaultURL       = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "divesite/1.0" // Nominatim ToS requires an identifying agent
)

// ErrNoResult is returned when the service knows nothing about a position,
// typically open water far from any named feature.
var ErrNoResult = errors.New("no place found")

// Nominatim is a Gateway backed by the OpenStreetMap Nominatim /reverse API.
//
// Calls are spaced at least MinInterval apart across all goroutines, as
// required by the public instance's usage policy.
type Nominatim struct {
	baseURL     string
	userAgent   string
	minInterval time.Duration
	httpClient  *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// Options configures a Nominatim client. Zero values pick the defaults.
type Options struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MinInterval time.Duration
}

// NewNominatim creates a reverse geocoder.
func NewNominatim(opts Options) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}

	return &Nominatim{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		userAgent:   opts.UserAgent,
		minInterval: opts.MinInterval,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// reverseResponse is the subset of the jsonv2 /reverse payload we read.
type reverseResponse struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// ReverseGeocode looks up the place at lat/lon.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat.Float(), 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon.Float(), 'f', 6, 64))
	params.Set("zoom", "14")
	reqURL := fmt.Sprintf("%s/reverse?%s", n.baseURL, params.Encode())

	if err := n.wait(ctx); err != nil {
		return domain.Place{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Place{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Place{}, fmt.Errorf("decoding response: %w", err)
	}
	if body.Error != "" {
		return domain.Place{}, fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}

	place := toPlace(body)
	if place.Name == "" && place.Description == "" {
		return domain.Place{}, ErrNoResult
	}
	return place, nil
}

// wait blocks until the next call is allowed or ctx is done.
func (n *Nominatim) wait(ctx context.Context) error {
	n.mu.Lock()
	var delay time.Duration
	if !n.lastCall.IsZero() {
		if elapsed := time.Since(n.lastCall); elapsed < n.minInterval {
			delay = n.minInterval - elapsed
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue up behind it
	n.lastCall = time.Now().Add(delay)
	n.mu.Unlock()

	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// toPlace picks a short site name and keeps the full label as description.
func toPlace(r reverseResponse) domain.Place {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		for _, key := range []string{"natural", "water", "bay", "beach", "island", "village", "town", "city"} {
			if v := strings.TrimSpace(r.Address[key]); v != "" {
				name = v
				break
			}
		}
	}
	if name == "" {
		first, _, _ := strings.Cut(r.DisplayName, ",")
		name = strings.TrimSpace(first)
	}
	return domain.Place{
		Name:        name,
		Description: strings.TrimSpace(r.DisplayName),
	}
}
