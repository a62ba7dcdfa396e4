package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/mappichat/rasterh3/src/sphere"
	"github.com/mappichat/rasterh3/src/transform"
	"github.com/mappichat/rasterh3/src/utils"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"
)

type ResolutionSearchMode int

const (
	// MinDiff picks the resolution where the difference between the cell
	// area and the pixel area stops shrinking.
	MinDiff ResolutionSearchMode = iota

	// SmallerThanPixel picks the coarsest resolution whose cells are not
	// larger than a pixel.
	SmallerThanPixel
)

func (m ResolutionSearchMode) String() string {
	switch m {
	case MinDiff:
		return "min-diff"
	case SmallerThanPixel:
		return "smaller-than-pixel"
	}
	return fmt.Sprintf("ResolutionSearchMode(%d)", int(m))
}

func ParseResolutionSearchMode(s string) (ResolutionSearchMode, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "min-diff", "mindiff":
		return MinDiff, nil
	case "smaller-than-pixel", "smallerthanpixel", "":
		return SmallerThanPixel, nil
	}
	return SmallerThanPixel, fmt.Errorf("unknown resolution search mode %q", s)
}

// NearestResolution finds the h3 resolution matching the size of a pixel
// of an array with the given shape and transform. The areas of pixel and
// cell are compared at the center of the array.
func (m ResolutionSearchMode) NearestResolution(shape [2]int, t transform.Transform, axisOrder project_types.AxisOrder) (int, error) {
	if shape[0] == 0 || shape[1] == 0 {
		return 0, errors.WithStack(project_types.ErrEmptyArray)
	}
	xSize := shape[axisOrder.XAxis()]
	ySize := shape[axisOrder.YAxis()]

	bbox := t.ApplyBound(orb.Bound{
		Min: orb.Point{0, 0},
		Max: orb.Point{float64(xSize - 1), float64(ySize - 1)},
	})
	areaPixel := sphere.BoundArea(bbox) / float64(xSize*ySize)

	center := bbox.Center()
	if math.IsNaN(center[0]) || math.IsInf(center[0], 0) || math.IsNaN(center[1]) || center[1] < -90 || center[1] > 90 {
		return 0, errors.Wrapf(project_types.ErrInvalidLatLng, "array center %v", center)
	}
	centerGeo := h3.GeoCoord{Latitude: center[1], Longitude: NormalizeLongitude(center[0])}

	var prevDiff float64
	for res := project_types.MinResolution; res <= project_types.MaxResolution; res++ {
		areaCell := utils.CellArea(h3.FromGeo(centerGeo, res))

		switch m {
		case SmallerThanPixel:
			if areaCell <= areaPixel {
				return res, nil
			}
		case MinDiff:
			diff := math.Abs(areaCell - areaPixel)
			if res > project_types.MinResolution && diff > prevDiff {
				return res - 1, nil
			}
			prevDiff = diff
		default:
			return 0, fmt.Errorf("unknown resolution search mode %d", int(m))
		}
	}

	// even the finest cells are larger than a pixel, or the difference
	// was still shrinking at the finest resolution
	return project_types.MaxResolution, nil
}
