package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliations = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "reconciliations_total",
			Help:      "Reconciled session events by event kind and result.",
		},
		[]string{"event", "result"},
	)

	reconcileSeconds = promauto.NewHistogram( //nolint:gochecknoglobals
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "reconciliation_seconds",
			Help:      "Time spent reconciling one session event.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	droppedOutcomes = promauto.NewCounter( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "dropped_outcomes_total",
			Help:      "Outcomes dropped because nobody drained the outcome channel.",
		},
	)
)
