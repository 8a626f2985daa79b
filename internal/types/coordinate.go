package types

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 point. The zero value is not meaningful on its own;
// use NewCoordinate so latitude/longitude are sanitized on the way in.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	valid bool
}

// NewCoordinate sanitizes raw latitude/longitude input. Non-finite values are
// rejected (ok=false); out-of-range values are clamped to the valid interval
// rather than rejected, matching how the game's own payloads behave near the
// antimeridian.
func NewCoordinate(lat, lng float64) (Coordinate, bool) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Coordinate{}, false
	}
	return Coordinate{
		Lat:   clamp(lat, -90, 90),
		Lng:   clamp(lng, -180, 180),
		valid: true,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Valid reports whether the coordinate passed through NewCoordinate.
func (c Coordinate) Valid() bool {
	return c.valid
}

// Key returns a stable string form used for digests and map keys.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// ChebyshevDistance returns max(|Δlat|, |Δlng|) to the other coordinate.
// The override table uses this as its tolerance metric.
func (c Coordinate) ChebyshevDistance(o Coordinate) float64 {
	return math.Max(math.Abs(c.Lat-o.Lat), math.Abs(c.Lng-o.Lng))
}
