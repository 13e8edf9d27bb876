package generate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thumbexpert"

var modelCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_calls_total",
		Help:      "External model calls by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

var modelCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Latency of external model calls.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
	},
	[]string{"operation"},
)

var bulkItemsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_items_total",
		Help:      "Bulk caption items by result (ok, empty, failed).",
	},
	[]string{"result"},
)

func observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	modelCallsTotal.WithLabelValues(operation, outcome).Inc()
	modelCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
