package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace  = "gotraj"
	LabelField = "field"
	LabelAxis  = "axis"
)

// WindowsCompleted counts time windows fully integrated and written.
var WindowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "windows_completed_total",
	Help:      "Total number of time windows integrated and written",
})

// WindowDuration observes the wall time of one window on the coordinating rank.
var WindowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "window_duration_seconds",
	Help:      "Wall time of one time window",
	Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
})

// InvalidParcels is the number of parcels outside the archive domain at the
// last planning pass.
var InvalidParcels = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "invalid_parcels",
	Help:      "Parcels outside the archive domain at the last planning pass",
})

var SubsetCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "subset_cells",
	Help:      "Extent of the last planned grid subset per axis",
}, []string{LabelAxis})

var GatheredBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "gathered_bytes_total",
	Help:      "Bytes gathered onto the coordinating rank per field",
}, []string{LabelField})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
