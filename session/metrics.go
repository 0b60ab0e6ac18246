package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// treesTrained counts completed trees.
	// Labels: mode (bagging, boosting)
	treesTrained = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "train",
		Name:      "trees_total",
		Help:      "Total trees trained",
	}, []string{"mode"})

	// treeDuration measures the wall time of one tree.
	// Labels: mode
	treeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arbor",
		Subsystem: "train",
		Name:      "tree_duration_seconds",
		Help:      "Time to train one tree",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"mode"})

	candidatesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "split",
		Name:      "candidates_total",
		Help:      "Total (node, predictor) candidates scanned",
	})

	splitsFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "split",
		Name:      "improving_total",
		Help:      "Total candidates yielding an improving cut",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arbor",
		Subsystem: "session",
		Name:      "active",
		Help:      "Training sessions currently open",
	})
)

// RecordTree records one trained tree.
func RecordTree(mode string, d time.Duration) {
	treesTrained.WithLabelValues(mode).Inc()
	treeDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordCandidates records a batch of scanned candidates, found of which
// improved their node.
func RecordCandidates(scanned, found int) {
	candidatesEvaluated.Add(float64(scanned))
	splitsFound.Add(float64(found))
}
