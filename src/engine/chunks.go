package engine

import (
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/mappichat/rasterh3/src/raster"
)

// Span is an inclusive range of indexes along one axis.
type Span struct {
	Start int
	End   int
}

// FindContinuousChunksAlongAxis returns the runs of consecutive positions
// along axis whose lane holds at least one value other than nodata.
func FindContinuousChunksAlongAxis[T comparable](a raster.Array[T], axis int, nodata T) []Span {
	chunks := []Span{}
	start := -1

	for pos := 0; pos < a.Shape()[axis]; pos++ {
		occupied := false
		a.Lane(axis, pos, func(v T) bool {
			if v != nodata {
				occupied = true
				return false
			}
			return true
		})

		if occupied {
			if start < 0 {
				start = pos
			}
		} else if start >= 0 {
			chunks = append(chunks, Span{Start: start, End: pos - 1})
			start = -1
		}
	}
	if start >= 0 {
		chunks = append(chunks, Span{Start: start, End: a.Shape()[axis] - 1})
	}
	return chunks
}

// FindBoxesContainingData finds rectangles of the array holding values other
// than nodata. Every such value lies in one of the returned rectangles, but
// the rectangles are not minimal: separate clusters not divided by a fully
// empty row or column end up in the same box.
func FindBoxesContainingData[T comparable](a raster.Array[T], nodata T, axisOrder project_types.AxisOrder) []project_types.Rect {
	xAxis, yAxis := axisOrder.XAxis(), axisOrder.YAxis()
	boxes := []project_types.Rect{}

	for _, xChunk := range FindContinuousChunksAlongAxis(a, xAxis, nodata) {
		xView := a.Slice(xAxis, xChunk.Start, xChunk.End+1)

		for _, yChunk := range FindContinuousChunksAlongAxis(xView, yAxis, nodata) {
			yView := xView.Slice(yAxis, yChunk.Start, yChunk.End+1)

			// the x range of this y band may be narrower than the whole x chunk
			for _, xRefined := range FindContinuousChunksAlongAxis(yView, xAxis, nodata) {
				boxes = append(boxes, project_types.Rect{
					MinX: xChunk.Start + xRefined.Start,
					MinY: yChunk.Start,
					MaxX: xChunk.Start + xRefined.End,
					MaxY: yChunk.End,
				})
			}
		}
	}
	return boxes
}

// chunkEdgeLength adapts the window size to the array, from 10 to 100 pixels.
func chunkEdgeLength(xSize int) int {
	size := xSize / 10
	if size < 10 {
		return 10
	}
	if size > 100 {
		return 100
	}
	return size
}

// gridWindows covers the whole array with windows of size x size pixels.
func gridWindows(xSize, ySize, size int) []project_types.Rect {
	windows := []project_types.Rect{}
	for x := 0; x < xSize; x += size {
		for y := 0; y < ySize; y += size {
			windows = append(windows, project_types.Rect{
				MinX: x,
				MinY: y,
				MaxX: min(xSize, x+size) - 1,
				MaxY: min(ySize, y+size) - 1,
			})
		}
	}
	return windows
}

// sparseWindows cuts the array into strips of size along x, finds the
// boxes with data in each strip and cuts those along y, so no window
// is larger than size x size pixels.
func sparseWindows[T comparable](a raster.Array[T], nodata T, axisOrder project_types.AxisOrder, size int, strategy Strategy) ([]project_types.Rect, error) {
	xAxis := axisOrder.XAxis()
	xSize := a.Shape()[xAxis]

	nStrips := (xSize + size - 1) / size
	perStrip := make([][]project_types.Rect, nStrips)
	err := strategy.Run(nStrips, func(i int) error {
		offset := i * size
		strip := a.Slice(xAxis, offset, min(xSize, offset+size))
		for _, box := range FindBoxesContainingData(strip, nodata, axisOrder) {
			for y := box.MinY; y <= box.MaxY; y += size {
				perStrip[i] = append(perStrip[i], project_types.Rect{
					MinX: offset + box.MinX,
					MinY: y,
					MaxX: offset + box.MaxX,
					MaxY: min(box.MaxY, y+size-1),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	windows := []project_types.Rect{}
	for _, strip := range perStrip {
		windows = append(windows, strip...)
	}
	return windows, nil
}
