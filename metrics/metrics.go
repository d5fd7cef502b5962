package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hard_delete",
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Lifecycle operations broken down by operation and result code.",
	}, []string{"operation", "result"})

	executionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hard_delete",
		Subsystem: "workflow",
		Name:      "execution_seconds",
		Help:      "Time spent permanently removing a record.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// RecordTransition counts one lifecycle operation outcome. result is "ok" or an error code.
func RecordTransition(operation, result string) {
	transitions.With(prometheus.Labels{
		"operation": operation,
		"result":    result,
	}).Inc()
}

// ObserveExecution records how long a hard delete took
func ObserveExecution(seconds float64) {
	executionLatency.Observe(seconds)
}
