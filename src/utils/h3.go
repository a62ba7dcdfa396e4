package utils

import (
	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v3"
)

// CellCentroid returns the cell center as a lon/lat point.
func CellCentroid(cell h3.H3Index) orb.Point {
	geo := h3.ToGeo(cell)
	return orb.Point{geo.Longitude, geo.Latitude}
}

// CellBoundary returns the closed boundary ring of a cell. Longitudes are
// unwrapped relative to the first vertex so rings of cells on the
// antimeridian stay contiguous.
func CellBoundary(cell h3.H3Index) orb.Ring {
	boundary := h3.ToGeoBoundary(cell)
	ring := make(orb.Ring, 0, len(boundary)+1)
	for i, coord := range boundary {
		lon := coord.Longitude
		if i > 0 {
			ref := ring[0][0]
			for lon-ref > 180 {
				lon -= 360
			}
			for lon-ref < -180 {
				lon += 360
			}
		}
		ring = append(ring, orb.Point{lon, coord.Latitude})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// CellArea is the exact area of the cell in square meters.
func CellArea(cell h3.H3Index) float64 {
	return h3.CellAreaM2(cell)
}

func CellPolygon(cell h3.H3Index) orb.Polygon {
	return orb.Polygon{CellBoundary(cell)}
}
