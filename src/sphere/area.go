// Package sphere estimates areas of geographic geometries on a spherical
// earth. The numbers are good enough to compare pixels with h3 cells, they
// are not geodesic measurements.
//
// Chamberlain, R. and W. Duquette. "Some algorithms for polygons on a sphere." (2007).
package sphere

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius is the equatorial radius in meters.
const EarthRadius = orb.EarthRadius

// RingArea returns the area of a closed ring of lon/lat coordinates in
// square meters. Open rings have no area.
func RingArea(r orb.Ring) float64 {
	if len(r) < 2 || r[0] != r[len(r)-1] {
		return 0
	}
	return math.Abs(geo.Area(r))
}

// PolygonArea is the exterior area minus the holes, floored at zero.
func PolygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	area := RingArea(p[0])
	for _, hole := range p[1:] {
		area -= RingArea(hole)
	}
	return math.Max(area, 0)
}

func BoundArea(b orb.Bound) float64 {
	return PolygonArea(b.ToPolygon())
}
