package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reviewbot"

var (
	// EnqueueTotal counts enqueue calls by queue and result (inserted, duplicate, error).
	EnqueueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueue_total",
			Help:      "Enqueue attempts by queue and result",
		},
		[]string{"queue", "result"},
	)

	// EntryOutcomes counts processed entries by queue and outcome.
	EntryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "entry_outcomes_total",
			Help:      "Processed entries by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	// BatchDuration tracks how long one processPending pass takes.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch pass in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"queue"},
	)

	// StaleRecovered counts PROCESSING entries released by the timeout sweep.
	StaleRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "stale_recovered_total",
			Help:      "Entries moved back to RETRY_PENDING after a claim timeout",
		},
		[]string{"queue"},
	)
)
