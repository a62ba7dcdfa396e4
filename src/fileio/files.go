package fileio

import (
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mappichat/rasterh3/src/coverage"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/mappichat/rasterh3/src/raster"
	"github.com/mappichat/rasterh3/src/transform"
	"github.com/mappichat/rasterh3/src/utils"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"
)

// LoadOptions reads a toml config on top of the defaults. An empty path
// returns the defaults. Endpoints and secrets are overridden from the
// environment, a .env file in the working directory is loaded first.
func LoadOptions(filePath string) (project_types.EngineOptions, error) {
	options := project_types.DefaultOptions()
	if filePath != "" {
		if _, err := toml.DecodeFile(filePath, &options); err != nil {
			return options, errors.Wrapf(err, "decode %s", filePath)
		}
	}

	if utils.FileExists(".env") {
		if err := godotenv.Load(); err != nil {
			return options, errors.Wrap(err, "load .env")
		}
	}
	ApplyEnv(&options)
	return options, nil
}

func ApplyEnv(options *project_types.EngineOptions) {
	if v := os.Getenv("RASTERH3_DSN"); v != "" {
		options.Database.DSN = v
	}
	if v := os.Getenv("RASTERH3_REDIS_ADDR"); v != "" {
		options.Server.RedisAddr = v
	}
	if v := os.Getenv("RASTERH3_JWKS_URL"); v != "" {
		options.Server.JwksURL = v
	}
}

// RasterFile is the json representation of a single band raster. Values
// are row-major, null stands for NaN.
type RasterFile struct {
	Shape      [2]int     `json:"shape" validate:"required"`
	Values     []*float64 `json:"values" validate:"required"`
	Transform  [6]float64 `json:"transform" validate:"required"`
	Convention string     `json:"convention"`
	AxisOrder  string     `json:"axis_order"`
	Nodata     *float64   `json:"nodata"`
}

type Raster struct {
	Array     raster.Array[raster.Float64Bits]
	Nodata    *raster.Float64Bits
	Transform transform.Transform
	AxisOrder project_types.AxisOrder
}

func (f RasterFile) Build() (Raster, error) {
	values := make([]float64, len(f.Values))
	for i, v := range f.Values {
		if v == nil {
			values[i] = math.NaN()
		} else {
			values[i] = *v
		}
	}
	arr, err := raster.FromFloat64(values, f.Shape)
	if err != nil {
		return Raster{}, err
	}
	t, err := transform.FromConvention(f.Convention, f.Transform)
	if err != nil {
		return Raster{}, err
	}
	axisOrder, err := project_types.ParseAxisOrder(f.AxisOrder)
	if err != nil {
		return Raster{}, err
	}

	r := Raster{Array: arr, Transform: t, AxisOrder: axisOrder}
	if f.Nodata != nil {
		nodata := raster.F64(*f.Nodata)
		r.Nodata = &nodata
	}
	return r, nil
}

func ReadRaster(filePath string) (Raster, error) {
	f := RasterFile{}
	if err := utils.ReadJsonFile(filePath, &f); err != nil {
		return Raster{}, err
	}
	r, err := f.Build()
	return r, errors.Wrapf(err, "raster %s", filePath)
}

// CellMap maps raster values to h3 cell strings.
type CellMap map[string][]string

// ToCellMap lists the compacted cells of each value, or, with a valid
// uncompactTo resolution, the cells expanded to that resolution.
func ToCellMap[T interface {
	comparable
	String() string
}](cells map[T]*coverage.CellCoverage, uncompactTo int) CellMap {
	out := make(CellMap, len(cells))
	for value, cov := range cells {
		seq := cov.CompactedIter()
		if uncompactTo >= 0 {
			seq = cov.UncompactedIter(uncompactTo)
		}
		// distinct NaN bit patterns share the key "NaN"
		key := value.String()
		strs := out[key]
		if strs == nil {
			strs = []string{}
		}
		for cell := range seq {
			strs = append(strs, h3.ToString(cell))
		}
		out[key] = strs
	}
	return out
}

func WriteCellMap(cellMap CellMap, filePath string) error {
	return utils.WriteAsJsonFile(cellMap, filePath)
}

func ReadCellMap(filePath string) (CellMap, error) {
	cellMap := CellMap{}
	if err := utils.ReadJsonFile(filePath, &cellMap); err != nil {
		return nil, err
	}
	return cellMap, nil
}

type CellProperties struct {
	Value      string
	Cell       string
	Resolution int
	Area       float64
}

// FeatureCollection builds one polygon feature per cell. Properties are
// written in snake case.
func FeatureCollection(cellMap CellMap) (*geojson.FeatureCollection, error) {
	values := make([]string, 0, len(cellMap))
	for value := range cellMap {
		values = append(values, value)
	}
	sort.Strings(values)

	fc := geojson.NewFeatureCollection()
	for _, value := range values {
		for _, str := range cellMap[value] {
			cell := h3.FromString(str)
			if !h3.IsValid(cell) {
				return nil, errors.Errorf("invalid h3 index %q for value %s", str, value)
			}
			props, err := utils.DecodeSnakeCase(CellProperties{
				Value:      value,
				Cell:       str,
				Resolution: h3.Resolution(cell),
				Area:       math.Round(utils.CellArea(cell)),
			})
			if err != nil {
				return nil, err
			}
			feature := geojson.NewFeature(utils.CellPolygon(cell))
			feature.Properties = props
			fc.Append(feature)
		}
	}
	return fc, nil
}

func WriteGeoJson(cellMap CellMap, filePath string) error {
	fc, err := FeatureCollection(cellMap)
	if err != nil {
		return err
	}
	return utils.WriteAsJsonFile(fc, filePath)
}

// ParseValue reads a cell map key back into the raster value it was
// written from.
func ParseValue(s string) (raster.Float64Bits, error) {
	if strings.EqualFold(s, "nan") {
		return raster.F64(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "value %q", s)
	}
	return raster.F64(v), nil
}
