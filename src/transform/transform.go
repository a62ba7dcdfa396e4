package transform

import (
	"math"

	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Transform maps array coordinates (x, y) to geographic coordinates:
//
//	lon = A*x + B*y + C
//	lat = D*x + E*y + F
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// FromGdal builds a transform from gdal's geotransform ordering
// [originX, pixelWidth, rotX, originY, rotY, pixelHeight].
func FromGdal(t [6]float64) Transform {
	return Transform{A: t[1], B: t[2], C: t[0], D: t[4], E: t[5], F: t[3]}
}

// FromRasterio builds a transform from the affine matrix ordering
// [a, b, c, d, e, f] used by rasterio.
func FromRasterio(t [6]float64) Transform {
	return Transform{A: t[0], B: t[1], C: t[2], D: t[3], E: t[4], F: t[5]}
}

// FromConvention picks FromGdal or FromRasterio by name.
func FromConvention(convention string, t [6]float64) (Transform, error) {
	switch convention {
	case "gdal", "":
		return FromGdal(t), nil
	case "rasterio":
		return FromRasterio(t), nil
	}
	return Transform{}, errors.Errorf("unknown transform convention %q", convention)
}

func (t Transform) Apply(p orb.Point) orb.Point {
	return orb.Point{
		t.A*p[0] + t.B*p[1] + t.C,
		t.D*p[0] + t.E*p[1] + t.F,
	}
}

// ApplyBound transforms the four corners of b and returns their envelope.
func (t Transform) ApplyBound(b orb.Bound) orb.Bound {
	out := orb.Bound{Min: t.Apply(b.Min), Max: t.Apply(b.Min)}
	for _, p := range []orb.Point{b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		out = out.Extend(t.Apply(p))
	}
	return out
}

func (t Transform) Determinant() float64 {
	return t.A*t.E - t.B*t.D
}

func (t Transform) Inverse() (Transform, error) {
	det := t.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Transform{}, errors.WithStack(project_types.ErrTransformNotInvertible)
	}
	a := t.E / det
	b := -t.B / det
	d := -t.D / det
	e := t.A / det
	return Transform{
		A: a,
		B: b,
		C: -(a*t.C + b*t.F),
		D: d,
		E: e,
		F: -(d*t.C + e*t.F),
	}, nil
}

func (t Transform) Coefficients() [6]float64 {
	return [6]float64{t.A, t.B, t.C, t.D, t.E, t.F}
}
