package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Rodovar-GPS/GPS/internal/geo"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"

	// nominatimTimeout bounds a single provider call.
	nominatimTimeout = 5 * time.Second

	// reverseZoom requests street-level detail from /reverse.
	reverseZoom = 18

	httpMaxIdleConns    = 10
	httpIdleConnTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 1 << 20
)

// Outcome labels reported to the observer.
const (
	OutcomeOK       = "ok"
	OutcomeNoResult = "no_result"
	OutcomeError    = "error"
)

// Observer is notified after every provider call with the operation
// ("search" or "reverse") and its outcome.
type Observer func(op, outcome string)

// NominatimGeocoder implements Geocoder against the Nominatim HTTP API.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	observe    Observer
}

// NominatimOption configures a NominatimGeocoder.
type NominatimOption func(*NominatimGeocoder)

// WithObserver sets a callback invoked after each provider call.
func WithObserver(o Observer) NominatimOption {
	return func(g *NominatimGeocoder) { g.observe = o }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(g *NominatimGeocoder) { g.httpClient = c }
}

// NewNominatimGeocoder creates a geocoder for the Nominatim instance at
// baseURL. Nominatim's usage policy requires an identifying userAgent.
func NewNominatimGeocoder(baseURL, userAgent string, opts ...NominatimOption) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	g := &NominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: nominatimTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        httpMaxIdleConns,
				MaxIdleConnsPerHost: httpMaxIdleConns,
				IdleConnTimeout:     httpIdleConnTimeout,
			},
		},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Search calls /search and returns the first hit.
func (g *NominatimGeocoder) Search(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", query)

	var hits []nominatimPlace
	if err := g.get(ctx, "/search", params, &hits); err != nil {
		g.report("search", OutcomeError)
		return geo.Unknown, fmt.Errorf("geocode: nominatim: search: %w", err)
	}
	if len(hits) == 0 {
		g.report("search", OutcomeNoResult)
		return geo.Unknown, ErrNoResult
	}

	c, err := hits[0].coordinate()
	if err != nil {
		g.report("search", OutcomeError)
		return geo.Unknown, fmt.Errorf("geocode: nominatim: search: %w", err)
	}
	g.report("search", OutcomeOK)
	return c, nil
}

// Reverse calls /reverse with address details.
func (g *NominatimGeocoder) Reverse(ctx context.Context, c geo.Coordinate) (*Address, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	params.Set("zoom", strconv.Itoa(reverseZoom))
	params.Set("addressdetails", "1")

	var place nominatimPlace
	if err := g.get(ctx, "/reverse", params, &place); err != nil {
		g.report("reverse", OutcomeError)
		return nil, fmt.Errorf("geocode: nominatim: reverse: %w", err)
	}
	if place.Error != "" {
		g.report("reverse", OutcomeNoResult)
		return nil, ErrNoResult
	}

	g.report("reverse", OutcomeOK)
	return place.address(), nil
}

func (g *NominatimGeocoder) get(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, nominatimTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (g *NominatimGeocoder) report(op, outcome string) {
	if g.observe != nil {
		g.observe(op, outcome)
	}
}

// --- JSON types for the Nominatim API ---

type nominatimPlace struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

type nominatimAddress struct {
	Road    string `json:"road"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
}

func (p nominatimPlace) coordinate() (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return geo.Unknown, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return geo.Unknown, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return geo.Coordinate{Lat: lat, Lng: lng}, nil
}

func (p nominatimPlace) address() *Address {
	road := p.Address.Road
	if road == "" {
		road, _, _ = strings.Cut(p.DisplayName, ",")
		road = strings.TrimSpace(road)
	}
	city := p.Address.City
	if city == "" {
		city = p.Address.Town
	}
	if city == "" {
		city = p.Address.Village
	}
	return &Address{Road: road, City: city, State: p.Address.State}
}
