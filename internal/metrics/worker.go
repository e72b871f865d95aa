package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted tracks Session Worker entries into a session.
	SessionsStarted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sessions_started_total",
			Help:      "Total number of sessions the worker entered",
		},
	)

	// SessionsEnded tracks how sessions concluded.
	SessionsEnded = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions the worker concluded, by outcome",
		},
		[]string{"outcome"}, // end_session, timeout
	)

	// SessionDuration tracks wall-clock time spent in RunSession.
	SessionDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "session_duration_seconds",
			Help:      "Time spent driving one session to completion or timeout",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	// RoundsAdvanced tracks round-boundary crossings observed at EndSession.
	RoundsAdvanced = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "rounds_advanced_total",
			Help:      "Total number of round boundaries crossed",
		},
	)

	// ThresholdReached tracks how many distinct submitters were present when
	// FinalizeKey fired, as a distribution rather than a single counter.
	ThresholdReached = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "submitters_at_finalize",
			Help:      "Distinct submitter count observed when a session finalized",
			Buckets:   prometheus.LinearBuckets(1, 1, 16),
		},
	)
)
