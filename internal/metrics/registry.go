// Package metrics exposes Prometheus counters, gauges, and histograms for
// the node's components, grounded on the teacher's internal/metrics
// per-component-file layout (promauto.With(Registry), one file per
// subsystem), retargeted from handshake/session/message/crypto subsystems
// to the DKG session worker, RPC surface, commitment store, and task
// executor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "dkg_node"

// Registry is the process-wide collector registry. A dedicated registry
// (rather than prometheus.DefaultRegisterer) keeps this package's metrics
// free of the default process/go_* collectors unless explicitly added.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGoCollector())
}
