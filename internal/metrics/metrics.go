// Package metrics holds the Prometheus metrics for file reading.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for filerift.
type Metrics struct {
	RowsRead    *prometheus.CounterVec
	RowErrors   *prometheus.CounterVec
	BytesRead   prometheus.Counter
	Detections  *prometheus.CounterVec
	RowsLoaded  prometheus.Counter
	ReadSeconds prometheus.Histogram
}

// New creates and registers all metrics with the provided registry.
func New(reg prometheus.Registerer) *Metrics {
	rowsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filerift_rows_read_total",
		Help: "Total data rows read",
	}, []string{"mode"})

	rowErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filerift_row_errors_total",
		Help: "Total rows that failed to convert",
	}, []string{"policy"})

	bytesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filerift_bytes_read_total",
		Help: "Total decoded bytes read from inputs",
	})

	detections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filerift_dialect_detections_total",
		Help: "Dialect detections by outcome",
	}, []string{"outcome"})

	rowsLoaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filerift_rows_loaded_total",
		Help: "Total rows copied into PostgreSQL",
	})

	readSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "filerift_read_duration_seconds",
		Help:    "Time spent reading one input",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(rowsRead, rowErrors, bytesRead, detections, rowsLoaded, readSeconds)

	return &Metrics{
		RowsRead:    rowsRead,
		RowErrors:   rowErrors,
		BytesRead:   bytesRead,
		Detections:  detections,
		RowsLoaded:  rowsLoaded,
		ReadSeconds: readSeconds,
	}
}

// ObserveDetection counts one detection attempt.
func (m *Metrics) ObserveDetection(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "undetermined"
	}
	m.Detections.WithLabelValues(outcome).Inc()
}
