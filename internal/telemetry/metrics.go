package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across both processes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "preview",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ActiveSchemas reports the current count of live preview_* schemas, as seen
// by the last capacity probe.
var ActiveSchemas = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "preview",
	Subsystem: "schema",
	Name:      "active_total",
	Help:      "Number of live preview_* schemas in the backing store.",
})

// CachedClients reports the current size of the Schema Manager's client LRU.
var CachedClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "preview",
	Subsystem: "schema",
	Name:      "cached_clients",
	Help:      "Number of pooled per-schema database clients currently cached.",
})

// HeapMB reports the Go heap size observed by the last capacity probe.
var HeapMB = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "preview",
	Subsystem: "schema",
	Name:      "heap_mb",
	Help:      "Heap size in MB observed by the last capacity probe.",
})

// SessionsCreatedTotal counts successful createSession calls.
var SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "preview",
	Subsystem: "session",
	Name:      "created_total",
	Help:      "Total number of sessions created.",
})

// SessionsRejectedTotal counts createSession calls rejected by capacity policy.
var SessionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "preview",
	Subsystem: "session",
	Name:      "rejected_total",
	Help:      "Total number of rejected session creations by reason.",
}, []string{"reason"})

// OrphanSchemasDroppedTotal counts schemas reclaimed by the orphan sweeper.
var OrphanSchemasDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "preview",
	Subsystem: "schema",
	Name:      "orphans_dropped_total",
	Help:      "Total number of orphaned preview schemas dropped by the sweeper.",
})

// GatewayCircuitOpenTotal counts transitions of the Authority-lookup circuit
// breaker into the open state.
var GatewayCircuitOpenTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "preview",
	Subsystem: "gateway",
	Name:      "circuit_open_total",
	Help:      "Total number of times the Authority-lookup circuit breaker opened.",
})

// FeatureGateDeniedTotal counts tenant requests denied by the feature gate.
var FeatureGateDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "preview",
	Subsystem: "gateway",
	Name:      "feature_gate_denied_total",
	Help:      "Total number of tenant requests denied by the feature gate, by module.",
}, []string{"module"})

// NewMetricsRegistry creates a Prometheus registry with the Go/process
// collectors plus any service-specific collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
