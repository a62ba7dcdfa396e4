// Package raster holds the read-only two-dimensional array views the
// converter works on.
package raster

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/pkg/errors"
)

// Array is a borrowed, dense, row-major view into a slice of values.
// Sub-views share the backing slice, nothing is copied.
type Array[T comparable] struct {
	data   []T
	origin int
	stride int
	shape  [2]int
}

// New wraps data as an array of the given shape. data is not copied and
// must not be modified while the array is in use.
func New[T comparable](data []T, shape [2]int) (Array[T], error) {
	if shape[0] < 0 || shape[1] < 0 {
		return Array[T]{}, errors.Errorf("negative shape %v", shape)
	}
	if len(data) != shape[0]*shape[1] {
		return Array[T]{}, errors.Errorf("shape %v does not match %d values", shape, len(data))
	}
	return Array[T]{data: data, stride: shape[1], shape: shape}, nil
}

// FromRows builds an array from a slice of equally long rows.
func FromRows[T comparable](rows [][]T) (Array[T], error) {
	if len(rows) == 0 {
		return New[T](nil, [2]int{0, 0})
	}
	cols := len(rows[0])
	data := make([]T, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Array[T]{}, errors.Errorf("row %d has %d values, expected %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return New(data, [2]int{len(rows), cols})
}

func (a Array[T]) Shape() [2]int {
	return a.shape
}

func (a Array[T]) Len() int {
	return a.shape[0] * a.shape[1]
}

// At returns the value at (i, j) and panics when out of bounds.
func (a Array[T]) At(i, j int) T {
	if i < 0 || j < 0 || i >= a.shape[0] || j >= a.shape[1] {
		panic(fmt.Sprintf("index (%d, %d) out of bounds for shape %v", i, j, a.shape))
	}
	return a.data[a.origin+i*a.stride+j]
}

// Get is At with a bounds check instead of a panic.
func (a Array[T]) Get(i, j int) (T, bool) {
	if i < 0 || j < 0 || i >= a.shape[0] || j >= a.shape[1] {
		var zero T
		return zero, false
	}
	return a.data[a.origin+i*a.stride+j], true
}

// Slice restricts the view along axis to [start, end).
func (a Array[T]) Slice(axis, start, end int) Array[T] {
	if start < 0 || end > a.shape[axis] || start > end {
		panic(fmt.Sprintf("slice [%d, %d) out of bounds for axis %d of shape %v", start, end, axis, a.shape))
	}
	out := a
	out.shape[axis] = end - start
	if axis == 0 {
		out.origin += start * a.stride
	} else {
		out.origin += start
	}
	return out
}

// Window restricts the view to an inclusive rectangle on the semantic axes.
func (a Array[T]) Window(r project_types.Rect, axisOrder project_types.AxisOrder) Array[T] {
	return a.Slice(axisOrder.XAxis(), r.MinX, r.MaxX+1).
		Slice(axisOrder.YAxis(), r.MinY, r.MaxY+1)
}

// Lane calls fn for every value whose index along axis equals pos, stopping
// early when fn returns false.
func (a Array[T]) Lane(axis, pos int, fn func(T) bool) {
	if axis == 0 {
		row := a.data[a.origin+pos*a.stride : a.origin+pos*a.stride+a.shape[1]]
		for _, v := range row {
			if !fn(v) {
				return
			}
		}
		return
	}
	for i := 0; i < a.shape[0]; i++ {
		if !fn(a.data[a.origin+i*a.stride+pos]) {
			return
		}
	}
}

// Float32Bits is a float32 compared by its bit pattern, so NaN can be used
// as a map key and as a nodata value.
type Float32Bits uint32

func F32(v float32) Float32Bits {
	return Float32Bits(math.Float32bits(v))
}

func (f Float32Bits) Float() float32 {
	return math.Float32frombits(uint32(f))
}

func (f Float32Bits) String() string {
	return strconv.FormatFloat(float64(f.Float()), 'g', -1, 32)
}

// Float64Bits is a float64 compared by its bit pattern.
type Float64Bits uint64

func F64(v float64) Float64Bits {
	return Float64Bits(math.Float64bits(v))
}

func (f Float64Bits) Float() float64 {
	return math.Float64frombits(uint64(f))
}

func (f Float64Bits) String() string {
	return strconv.FormatFloat(f.Float(), 'g', -1, 64)
}

func FromFloat32(data []float32, shape [2]int) (Array[Float32Bits], error) {
	bits := make([]Float32Bits, len(data))
	for i, v := range data {
		bits[i] = F32(v)
	}
	arr, err := New(bits, shape)
	return arr, errors.Wrap(err, "float32 array")
}

func FromFloat64(data []float64, shape [2]int) (Array[Float64Bits], error) {
	bits := make([]Float64Bits, len(data))
	for i, v := range data {
		bits[i] = F64(v)
	}
	arr, err := New(bits, shape)
	return arr, errors.Wrap(err, "float64 array")
}
