package fleet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the polling engine. Exposed through
// the panel's /metrics endpoint.
var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openfleet_probe_total",
		Help: "Agent probes by kind and outcome.",
	}, []string{"kind", "outcome"})

	probeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openfleet_probe_failures_total",
		Help: "Failed agent probes by kind and failure reason.",
	}, []string{"kind", "reason"})

	fleetRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openfleet_fleet_run_duration_seconds",
		Help:    "Wall-clock duration of whole-fleet runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"kind"})
)

func observeProbe(kind ProbeKind, perr *ProbeError) {
	if perr != nil {
		probeTotal.WithLabelValues(string(kind), "failure").Inc()
		probeFailures.WithLabelValues(string(kind), perr.Reason).Inc()
		return
	}
	probeTotal.WithLabelValues(string(kind), "success").Inc()
}
