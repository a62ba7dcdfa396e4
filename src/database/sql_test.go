package database

import (
	"math"
	"testing"

	"github.com/mappichat/rasterh3/src/fileio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	h3 "github.com/uber/h3-go/v3"
)

func TestCellRows(t *testing.T) {
	a := h3.FromGeo(h3.GeoCoord{Latitude: 49.0069, Longitude: 8.4037}, 7)
	b := h3.FromGeo(h3.GeoCoord{Latitude: 49.0069, Longitude: 8.4037}, 5)

	rows, err := CellRows("landuse", fileio.CellMap{
		"3":   {h3.ToString(a)},
		"NaN": {h3.ToString(b)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, CellRow{Dataset: "landuse", H3: h3.ToString(a), Resolution: 7, Value: 3, ValueText: "3"}, rows[0])
	assert.Equal(t, 5, rows[1].Resolution)
	assert.True(t, math.IsNaN(rows[1].Value))
	assert.Equal(t, "NaN", rows[1].ValueText)

	_, err = CellRows("landuse", fileio.CellMap{"3": {"zz"}})
	assert.Error(t, err)
	_, err = CellRows("landuse", fileio.CellMap{"three": {h3.ToString(a)}})
	assert.Error(t, err)
}

func TestBatches(t *testing.T) {
	rows := make([]CellRow, maxInsert/cellColumns*2+5)
	batches := Batches(rows)
	require.Len(t, batches, 3)
	total := 0
	for _, batch := range batches {
		assert.LessOrEqual(t, len(batch)*cellColumns, maxInsert)
		total += len(batch)
	}
	assert.Equal(t, len(rows), total)
	assert.Empty(t, Batches(nil))
}
