package engine

import (
	"math"

	"github.com/paulmach/orb"
)

// SplitBound is a part of a geographic rectangle inside [-180, 180].
// LonOffset is the shift applied by the normalization. Subtracting it from
// a longitude inside Bound gives the longitude in the unsplit rectangle.
type SplitBound struct {
	Bound     orb.Bound
	LonOffset float64
}

// NormalizeLongitude wraps a longitude into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	return math.Mod(lon+540, 360) - 180
}

// SplitAtAntimeridian returns b unchanged when it does not cross the
// antimeridian, otherwise the two parts on either side of it.
func SplitAtAntimeridian(b orb.Bound) []SplitBound {
	minX := NormalizeLongitude(b.Min[0])
	maxX := NormalizeLongitude(b.Max[0])

	if minX < maxX {
		return []SplitBound{{Bound: b}}
	}
	return []SplitBound{
		{
			Bound:     orb.Bound{Min: orb.Point{-180, b.Min[1]}, Max: orb.Point{maxX, b.Max[1]}},
			LonOffset: maxX - b.Max[0],
		},
		{
			Bound:     orb.Bound{Min: orb.Point{minX, b.Min[1]}, Max: orb.Point{180, b.Max[1]}},
			LonOffset: minX - b.Min[0],
		},
	}
}
