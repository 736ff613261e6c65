// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the Registry, plus the Logger interface its subsystems
// log through. Adapted from the teacher's coreengine/observability
// package, renamed from pipeline/agent/LLM metric families to catalog
// and session ones.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// CATALOG METRICS
// =============================================================================

var (
	catalogMachines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimo_registry_catalog_machines",
		Help: "Current number of machines in the catalog",
	})
	catalogNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimo_registry_catalog_nodes",
		Help: "Current number of nodes in the catalog",
	})
	catalogChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimo_registry_catalog_channels",
		Help: "Current number of channels in the catalog",
	})
	catalogConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimo_registry_catalog_connections",
		Help: "Current number of connections in the catalog",
	})
)

// RecordCatalogStats publishes a catalog.Stats snapshot to the gauges
// above. Called from the registry's periodic stats loop, so the gauges
// lag mutations by up to one sampling interval.
func RecordCatalogStats(machines, nodes, channels, connections int) {
	catalogMachines.Set(float64(machines))
	catalogNodes.Set(float64(nodes))
	catalogChannels.Set(float64(channels))
	catalogConnections.Set(float64(connections))
}

// =============================================================================
// DISPATCH METRICS
// =============================================================================

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimo_registry_requests_total",
			Help: "Total number of dispatched requests",
		},
		[]string{"opcode", "status"}, // status: ok, argument_error, not_found, conflict, internal
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nimo_registry_request_duration_seconds",
			Help:    "Handler execution duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"opcode"},
	)
)

// RecordRequest records one dispatched request's outcome and latency.
func RecordRequest(opcode, status string, durationSeconds float64) {
	requestsTotal.WithLabelValues(opcode, status).Inc()
	requestDurationSeconds.WithLabelValues(opcode).Observe(durationSeconds)
}

// =============================================================================
// SESSION METRICS
// =============================================================================

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimo_registry_sessions_active",
		Help: "Number of currently open command sessions",
	})
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimo_registry_sessions_total",
			Help: "Total sessions opened, labeled by how they ended",
		},
		[]string{"closed_reason"}, // normal, transport_error, protocol_error, shutdown
	)
)

// SessionOpened increments the active-session gauge.
func SessionOpened() { sessionsActive.Inc() }

// SessionClosed decrements the active-session gauge and records why.
func SessionClosed(reason string) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(reason).Inc()
}

// =============================================================================
// STATUS PUBLISHER METRICS
// =============================================================================

var statusEventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nimo_registry_status_events_published_total",
		Help: "Total status events multicast, by event kind",
	},
	[]string{"kind"},
)

// RecordStatusEvent records one multicast status event.
func RecordStatusEvent(kind string) {
	statusEventsPublished.WithLabelValues(kind).Inc()
}
