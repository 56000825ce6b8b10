package geo

import (
	"math"
	"sort"
)

// RouteStop is an intermediate delivery point on a shipment's route.
// Only Coordinates and Order are interpreted here; the descriptive fields are
// carried through untouched.
type RouteStop struct {
	ID          string     `json:"id"`
	City        string     `json:"city"`
	State       string     `json:"state,omitempty"`
	Address     string     `json:"address,omitempty"`
	Coordinates Coordinate `json:"coordinates"`
	Order       int        `json:"order"`
	Completed   bool       `json:"completed,omitempty"`
}

// OptimizeRoute reorders stops into a greedy nearest-neighbour visiting
// sequence starting at origin and rewrites Order to the new 1-based position.
//
// It does not look for an optimal tour. When two stops are exactly
// equidistant the one that appears first in the input wins; that tie-break is
// implementation-defined. The input slice is left unmodified. O(n²).
func OptimizeRoute(origin Coordinate, stops []RouteStop) []RouteStop {
	remaining := make([]RouteStop, len(stops))
	copy(remaining, stops)

	out := make([]RouteStop, 0, len(stops))
	current := origin
	for len(remaining) > 0 {
		nearest := 0
		minDist := math.Inf(1)
		for i, s := range remaining {
			if d := DistanceBetween(current, s.Coordinates); d < minDist {
				minDist = d
				nearest = i
			}
		}

		next := remaining[nearest]
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
		next.Order = len(out) + 1
		out = append(out, next)
		current = next.Coordinates
	}
	return out
}

// NextTarget returns the point a truck is currently heading to: the first
// stop, by Order, that is not completed, or destination once every stop is
// done. ok is false when there is no known target.
func NextTarget(stops []RouteStop, destination Coordinate) (Coordinate, bool) {
	ordered := make([]RouteStop, len(stops))
	copy(ordered, stops)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, s := range ordered {
		if !s.Completed && !s.Coordinates.IsUnknown() {
			return s.Coordinates, true
		}
	}
	if destination.IsUnknown() {
		return Unknown, false
	}
	return destination, true
}
