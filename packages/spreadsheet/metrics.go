package spreadsheet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transformationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetcalc_transformations_recorded_total",
		Help: "Structural edits appended to the transformation log",
	}, []string{"kind"})

	recalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetcalc_recalculations_total",
		Help: "Recalculation cycles by outcome",
	}, []string{"outcome"})

	verticesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetcalc_vertices_evaluated_total",
		Help: "Formula and range vertices evaluated",
	})

	cellsChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetcalc_cells_changed_total",
		Help: "Entries emitted in change lists",
	})

	cyclesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetcalc_cycles_detected_total",
		Help: "Strongly connected components found during ordering",
	})

	rangeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetcalc_range_cache_lookups_total",
		Help: "Range aggregate lookups by result",
	}, []string{"result"})

	recalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheetcalc_recalculation_duration_seconds",
		Help:    "Duration of recalculation cycles",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25, 1},
	})
)
