// Package geocode resolves place names to coordinates and coordinates back to
// human-readable addresses.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Rodovar-GPS/GPS/internal/geo"
)

// DefaultCoordinate is returned by LocateCity when a city cannot be found.
// It is the geographic centre of Brazil.
var DefaultCoordinate = geo.Coordinate{Lat: -14.2350, Lng: -51.9253}

// ErrNoResult is returned when the provider answered but matched nothing.
var ErrNoResult = errors.New("geocode: no result")

// minDetailedAddressLen is the shortest detailed address worth prepending to a
// place query.
const minDetailedAddressLen = 4

// Address is the outcome of a reverse lookup.
type Address struct {
	// Road is the street name, or the first segment of the display name when
	// the provider returned no road.
	Road  string `json:"road"`
	City  string `json:"city"`
	State string `json:"state"`
}

// Geocoder resolves free-text queries and coordinates.
type Geocoder interface {
	// Search returns the best match for query, or ErrNoResult.
	Search(ctx context.Context, query string) (geo.Coordinate, error)

	// Reverse returns the address at c.
	Reverse(ctx context.Context, c geo.Coordinate) (*Address, error)
}

// Locator wraps a Geocoder with the fallbacks used when creating shipments.
type Locator struct {
	geocoder Geocoder
	country  string
}

// NewLocator returns a Locator that appends country to every query.
func NewLocator(g Geocoder, country string) *Locator {
	return &Locator{geocoder: g, country: strings.TrimSpace(country)}
}

// LocateCity resolves "city, state, country". Any failure yields
// DefaultCoordinate.
func (l *Locator) LocateCity(ctx context.Context, city, state string) geo.Coordinate {
	q := l.query(strings.TrimSpace(city), strings.TrimSpace(state))
	c, err := l.geocoder.Search(ctx, q)
	if err != nil {
		if !errors.Is(err, ErrNoResult) {
			log.Printf("geocode: LocateCity %q: %v", q, err)
		}
		return DefaultCoordinate
	}
	return c
}

// LocatePlace resolves a free-text place, optionally prefixed with a detailed
// street address. When the detailed query matches nothing it retries with
// the place alone. Any failure yields geo.Unknown.
func (l *Locator) LocatePlace(ctx context.Context, place, detailedAddress string) geo.Coordinate {
	detailedAddress = strings.TrimSpace(detailedAddress)
	if len(detailedAddress) >= minDetailedAddressLen {
		c, err := l.geocoder.Search(ctx, l.query(detailedAddress, place))
		if err == nil {
			return c
		}
		if !errors.Is(err, ErrNoResult) {
			log.Printf("geocode: LocatePlace %q: %v", place, err)
			return geo.Unknown
		}
	}

	c, err := l.geocoder.Search(ctx, l.query(place))
	if err != nil {
		if !errors.Is(err, ErrNoResult) {
			log.Printf("geocode: LocatePlace %q: %v", place, err)
		}
		return geo.Unknown
	}
	return c
}

// Describe reverse geocodes c. The state is upper-cased.
func (l *Locator) Describe(ctx context.Context, c geo.Coordinate) (*Address, error) {
	addr, err := l.geocoder.Reverse(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("geocode: Describe: %w", err)
	}
	out := *addr
	out.State = strings.ToUpper(out.State)
	return &out, nil
}

func (l *Locator) query(parts ...string) string {
	if l.country != "" {
		parts = append(parts, l.country)
	}
	return strings.Join(parts, ", ")
}
