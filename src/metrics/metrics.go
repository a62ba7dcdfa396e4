package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConversionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rasterh3_conversions_total",
		Help: "Total number of raster conversions by outcome",
	}, []string{"status"})
	ConversionDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rasterh3_conversion_duration_ms",
		Help:    "Conversion duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	})
	CellsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rasterh3_cells_emitted_total",
		Help: "Total number of cells emitted by resolution",
	}, []string{"resolution"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rasterh3_cache_hits_total",
		Help: "Total redis cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rasterh3_cache_misses_total",
		Help: "Total redis cache misses",
	})
)

func init() {
	prometheus.MustRegister(ConversionsTotal)
	prometheus.MustRegister(ConversionDurationMs)
	prometheus.MustRegister(CellsEmitted)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// ObserveCells adds per resolution cell counts as returned by
// CellCoverage.Resolutions.
func ObserveCells(resolutions map[int]int) {
	for res, n := range resolutions {
		CellsEmitted.WithLabelValues(resolutionLabel(res)).Add(float64(n))
	}
}

var labels = [...]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}

func resolutionLabel(res int) string {
	if res < 0 || res >= len(labels) {
		return "invalid"
	}
	return labels[res]
}

func Handler() http.Handler { return promhttp.Handler() }
