// Package geo implements the distance, heading, progress and stop-sequencing
// math used to place trucks on the map and report km remaining.
//
// Every function is pure and safe for concurrent use.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the spherical Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	// trivialTripKm is the origin→destination distance at or below which a
	// trip is considered already complete.
	trivialTripKm = 0.1

	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Unknown is the (0,0) sentinel the application stores when no coordinate is
// available. It is never treated as a real location near the Gulf of Guinea.
var Unknown = Coordinate{}

// IsUnknown reports whether c is the (0,0) sentinel.
func (c Coordinate) IsUnknown() bool {
	return c.Lat == 0 && c.Lng == 0
}

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lng)
}

// Distance returns the great-circle distance in kilometers between
// (lat1, lon1) and (lat2, lon2) using the haversine formula.
//
// Inputs are not range-checked and (0,0) is an ordinary point here; the
// unknown-coordinate convention is enforced by callers.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * deg2rad
	dLon := (lon2 - lon1) * deg2rad
	lat1r := lat1 * deg2rad
	lat2r := lat2 * deg2rad

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	a := sinDLat*sinDLat + math.Cos(lat1r)*math.Cos(lat2r)*sinDLon*sinDLon
	// Rounding can push a just outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceBetween is Distance over two Coordinates.
func DistanceBetween(a, b Coordinate) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Bearing returns the initial compass bearing in degrees [0, 360) from start
// toward dest, clockwise from north.
//
// The bearing between coincident points is undefined: Bearing returns
// (0, false) in that case and callers should leave the marker unrotated.
func Bearing(start, dest Coordinate) (float64, bool) {
	if start == dest {
		return 0, false
	}

	lat1 := start.Lat * deg2rad
	lat2 := dest.Lat * deg2rad
	dLon := (dest.Lng - start.Lng) * deg2rad

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	theta := math.Atan2(y, x) * rad2deg
	b := math.Mod(theta+360, 360)
	// Mod can yield 360 for tiny negative angles after rounding.
	if b >= 360 {
		b = 0
	}
	return b, true
}

// Progress estimates trip completion as an integer percentage in [0, 100].
//
// It measures straight-line progress toward destination, not progress along
// the road, so values can move backwards when the truck detours around a stop.
// An Unknown origin or destination yields 0. Trips whose origin and
// destination are within 100 m of each other are reported as 100.
func Progress(origin, destination, current Coordinate) int {
	if origin.IsUnknown() || destination.IsUnknown() {
		return 0
	}

	total := DistanceBetween(origin, destination)
	if total <= trivialTripKm {
		return 100
	}
	remaining := DistanceBetween(current, destination)

	pct := (1 - remaining/total) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return int(math.Round(pct))
}

// RemainingKm returns the straight-line km from current to destination,
// rounded to the nearest integer. ok is false when either point is Unknown.
func RemainingKm(current, destination Coordinate) (km int, ok bool) {
	if current.IsUnknown() || destination.IsUnknown() {
		return 0, false
	}
	return int(math.Round(DistanceBetween(current, destination))), true
}
