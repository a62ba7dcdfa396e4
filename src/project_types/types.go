package project_types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AxisOrder tells which dimension of a two-dimensional array holds the x
// (longitude-ish) and which the y (latitude-ish) coordinate.
type AxisOrder int

const (
	// XY ordering, x is the first dimension.
	XY AxisOrder = iota
	// YX ordering, x is the second dimension. This is the row-major order
	// used by gdal and most image formats.
	YX
)

func (a AxisOrder) XAxis() int {
	if a == XY {
		return 0
	}
	return 1
}

func (a AxisOrder) YAxis() int {
	if a == XY {
		return 1
	}
	return 0
}

// Index maps semantic (x, y) coordinates to the concrete array index.
func (a AxisOrder) Index(x, y int) (int, int) {
	if a == XY {
		return x, y
	}
	return y, x
}

func (a AxisOrder) String() string {
	if a == XY {
		return "xy"
	}
	return "yx"
}

func ParseAxisOrder(s string) (AxisOrder, error) {
	switch strings.ToLower(s) {
	case "xy":
		return XY, nil
	case "yx", "":
		return YX, nil
	}
	return YX, fmt.Errorf("unknown axis order %q", s)
}

// Rect is a rectangle of array indexes on the semantic x and y axes. Both
// bounds are inclusive.
type Rect struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

func (r Rect) Width() int {
	return r.MaxX - r.MinX + 1
}

func (r Rect) Height() int {
	return r.MaxY - r.MinY + 1
}

func (r Rect) Area() int {
	return r.Width() * r.Height()
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

const (
	MinResolution = 0
	MaxResolution = 15
)

// number of cells per resolution
var ResolutionSizes map[int]int = map[int]int{
	0:  122,
	1:  842,
	2:  5882,
	3:  41162,
	4:  288122,
	5:  2016842,
	6:  14117882,
	7:  98825162,
	8:  691776122,
	9:  4842432842,
	10: 33897029882,
	11: 237279209162,
	12: 1660954464122,
	13: 11626681248842,
	14: 81386768741882,
	15: 569707381193162,
}

func ValidateResolution(resolution int) error {
	if _, ok := ResolutionSizes[resolution]; !ok {
		return errors.Wrapf(ErrInvalidResolution, "resolution %d", resolution)
	}
	return nil
}
