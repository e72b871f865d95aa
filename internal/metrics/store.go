package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations tracks Commitment Store reads/writes by kind and outcome.
	StoreOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of commitment store operations",
		},
		[]string{"op", "outcome"}, // get/put/apply, ok/not_found/error
	)

	// ApplyLockWait tracks time spent acquiring a per-key lock in Apply.
	ApplyLockWait = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "apply_lock_wait_seconds",
			Help:      "Time spent waiting to acquire a per-key Apply lock",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	// ApplyLockTimeouts tracks Apply calls that exceeded the 5s acquisition
	// timeout and were abandoned.
	ApplyLockTimeouts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "apply_lock_timeouts_total",
			Help:      "Total number of Apply calls that timed out waiting for a key lock",
		},
	)
)
