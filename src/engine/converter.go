package engine

import (
	"math"
	"sync"
	"time"

	"github.com/mappichat/rasterh3/src/coverage"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/mappichat/rasterh3/src/raster"
	"github.com/mappichat/rasterh3/src/transform"
	"github.com/mappichat/rasterh3/src/utils"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"
	"go.uber.org/zap"
)

type settings struct {
	strategy Strategy
	logger   *zap.Logger
	progress func(done int, total int)
}

type Option func(*settings)

// WithStrategy sets how windows are distributed, Sequential by default.
func WithStrategy(s Strategy) Option {
	return func(o *settings) {
		o.strategy = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *settings) {
		o.logger = l
	}
}

// WithProgress registers a callback invoked after every converted window.
// Calls are serialized.
func WithProgress(fn func(done int, total int)) Option {
	return func(o *settings) {
		o.progress = fn
	}
}

// Converter converts a two-dimensional array to h3 cells. Only the value of
// the pixel under a cell's centroid is taken into account. Regions holding
// nothing but the nodata value are skipped.
type Converter[T comparable] struct {
	arr       raster.Array[T]
	nodata    *T
	transform transform.Transform
	axisOrder project_types.AxisOrder
	settings
}

func NewConverter[T comparable](arr raster.Array[T], nodata *T, t transform.Transform, axisOrder project_types.AxisOrder, opts ...Option) *Converter[T] {
	c := &Converter[T]{
		arr:       arr,
		nodata:    nodata,
		transform: t,
		axisOrder: axisOrder,
		settings: settings{
			strategy: Sequential{},
			logger:   zap.NewNop(),
		},
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	return c
}

// NearestResolution finds the h3 resolution closest to the size of a pixel.
func (c *Converter[T]) NearestResolution(mode ResolutionSearchMode) (int, error) {
	return mode.NearestResolution(c.arr.Shape(), c.transform, c.axisOrder)
}

func (c *Converter[T]) windows(size int) ([]project_types.Rect, error) {
	xSize := c.arr.Shape()[c.axisOrder.XAxis()]
	ySize := c.arr.Shape()[c.axisOrder.YAxis()]
	if c.nodata == nil {
		return gridWindows(xSize, ySize, size), nil
	}
	return sparseWindows(c.arr, *c.nodata, c.axisOrder, size, c.strategy)
}

// ToH3 maps every distinct value of the array to the cells at resolution
// whose centroid lies on a pixel holding the value. With compact the
// coverages are compacted.
func (c *Converter[T]) ToH3(resolution int, compact bool) (map[T]*coverage.CellCoverage, error) {
	if err := project_types.ValidateResolution(resolution); err != nil {
		return nil, err
	}
	inverse, err := c.transform.Inverse()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	size := chunkEdgeLength(c.arr.Shape()[c.axisOrder.XAxis()])
	windows, err := c.windows(size)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("found windows containing non-nodata values",
		zap.Int("windows", len(windows)), zap.Int("edge", size))

	results := make([]map[T]*coverage.CellCoverage, len(windows))
	done := 0
	mu := sync.Mutex{}
	err = c.strategy.Run(len(windows), func(i int) error {
		window := windows[i]
		c.logger.Debug("converting window",
			zap.Int("window", i), zap.Int("total", len(windows)),
			zap.Int("width", window.Width()), zap.Int("height", window.Height()))

		cells, err := c.convertWindow(window, inverse, resolution, compact)
		if err != nil {
			return errors.Wrapf(err, "window %d", i)
		}
		results[i] = cells

		if c.progress != nil {
			mu.Lock()
			done++
			c.progress(done, len(windows))
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// combine the results of all windows
	combined := map[T]*coverage.CellCoverage{}
	for _, chunk := range results {
		for value, cells := range chunk {
			cov, ok := combined[value]
			if !ok {
				cov = coverage.New()
				combined[value] = cov
			}
			cov.Append(cells)
		}
	}

	if err := finalizeAll(combined, compact, c.strategy); err != nil {
		return nil, err
	}
	c.logger.Debug("converted array",
		zap.Int("values", len(combined)), zap.Duration("took", time.Since(start)))
	return combined, nil
}

func (c *Converter[T]) convertWindow(window project_types.Rect, inverse transform.Transform, resolution int, compact bool) (map[T]*coverage.CellCoverage, error) {
	chunk := map[T]*coverage.CellCoverage{}

	// the window covers whole pixels, up to the far edge of the last one
	pixels := orb.Bound{
		Min: orb.Point{float64(window.MinX), float64(window.MinY)},
		Max: orb.Point{float64(window.MaxX + 1), float64(window.MaxY + 1)},
	}
	geoBound := c.transform.ApplyBound(pixels)

	for _, part := range SplitAtAntimeridian(geoBound) {
		cells, err := tileBound(part.Bound, resolution)
		if err != nil {
			return nil, err
		}
		for _, cell := range cells {
			centroid := utils.CellCentroid(cell)
			p := inverse.Apply(orb.Point{centroid[0] - part.LonOffset, centroid[1]})
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) || p[0] < 0 || p[1] < 0 {
				continue
			}
			i, j := c.axisOrder.Index(int(math.Floor(p[0])), int(math.Floor(p[1])))
			value, ok := c.arr.Get(i, j)
			if !ok {
				continue
			}
			if c.nodata != nil && *c.nodata == value {
				continue
			}
			cov, ok := chunk[value]
			if !ok {
				cov = coverage.New()
				chunk[value] = cov
			}
			cov.Insert(cell)
		}
	}

	// finalize early to free memory before combining
	if err := finalizeAll(chunk, compact, Sequential{}); err != nil {
		return nil, err
	}
	return chunk, nil
}

// tileBound returns the cells whose centroid lies within b. Cells on the
// border between slices may be returned twice.
func tileBound(b orb.Bound, resolution int) ([]h3.H3Index, error) {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(project_types.ErrInvalidGeometry, "bound %v", b)
		}
	}
	if b.Min[0] < -180 || b.Max[0] > 180 {
		return nil, errors.Wrapf(project_types.ErrInvalidGeometry, "bound %v exceeds [-180, 180]", b)
	}
	minLat := math.Max(b.Min[1], -90)
	maxLat := math.Min(b.Max[1], 90)
	if b.Max[0] <= b.Min[0] || maxLat <= minLat {
		// nothing to cover, e.g. the empty side of a split at exactly 180
		return nil, nil
	}

	// h3 takes edges spanning more than 180 degrees to cross the
	// antimeridian, wide bounds are filled in slices
	width := b.Max[0] - b.Min[0]
	slices := int(math.Ceil(width / maxSliceWidth))
	var cells []h3.H3Index
	for i := 0; i < slices; i++ {
		west := b.Min[0] + width*float64(i)/float64(slices)
		east := b.Max[0]
		if i < slices-1 {
			east = b.Min[0] + width*float64(i+1)/float64(slices)
		}
		polygon := h3.GeoPolygon{
			Geofence: []h3.GeoCoord{
				{Latitude: minLat, Longitude: west},
				{Latitude: minLat, Longitude: east},
				{Latitude: maxLat, Longitude: east},
				{Latitude: maxLat, Longitude: west},
			},
		}
		cells = append(cells, h3.Polyfill(polygon, resolution)...)
	}
	return cells, nil
}

const maxSliceWidth = 90.0

func finalizeAll[T comparable](m map[T]*coverage.CellCoverage, compact bool, strategy Strategy) error {
	covs := make([]*coverage.CellCoverage, 0, len(m))
	for _, cov := range m {
		covs = append(covs, cov)
	}
	return strategy.Run(len(covs), func(i int) error {
		return covs[i].Finalize(compact)
	})
}

// Params controls a conversion. A negative Resolution is selected from the
// pixel size using SearchMode.
type Params struct {
	Resolution int
	SearchMode ResolutionSearchMode
	Compact    bool
}

// Convert resolves the resolution of p and converts, returning the
// resolution used.
func Convert[T comparable](c *Converter[T], p Params) (int, map[T]*coverage.CellCoverage, error) {
	resolution := p.Resolution
	if resolution < 0 {
		var err error
		if resolution, err = c.NearestResolution(p.SearchMode); err != nil {
			return 0, nil, err
		}
		c.logger.Debug("selected resolution",
			zap.Int("resolution", resolution), zap.Stringer("mode", p.SearchMode))
	}
	cells, err := c.ToH3(resolution, p.Compact)
	return resolution, cells, err
}
