package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCRequests tracks inbound JSON-RPC requests served, by plane/method/outcome.
	RPCRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests served",
		},
		[]string{"plane", "method", "outcome"}, // cluster/external/authority, ..., ok/error
	)

	// RPCRequestDuration tracks inbound request handling latency.
	RPCRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request handling duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		},
		[]string{"plane", "method"},
	)

	// OutboundCalls tracks Task Executor client calls to peers.
	OutboundCalls = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "outbound_calls_total",
			Help:      "Total number of outbound JSON-RPC calls issued",
		},
		[]string{"method", "outcome"},
	)

	// MulticastFanout tracks how many targets a single Multicast call reached.
	MulticastFanout = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "multicast_fanout",
			Help:      "Number of targets addressed per multicast call",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
		[]string{"method"},
	)
)
