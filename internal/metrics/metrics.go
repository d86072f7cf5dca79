// Package metrics exposes engine operation counters and gauges via
// Prometheus collectors registered on a caller-supplied registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OpSet     = "set"
	OpGet     = "get"
	OpDelete  = "delete"
	OpFlush   = "flush"
	OpCompact = "compact"
)

type Metrics struct {
	opsTotal    *prometheus.CounterVec
	opErrors    *prometheus.CounterVec
	walReplayed prometheus.Counter
	walCorrupt  prometheus.Counter
	segments    *prometheus.GaugeVec
}

// New registers the engine collectors on reg and returns the handle used by
// the engine to record activity.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"op"},
		),
		opErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_operation_errors_total",
				Help: "Total number of engine operations that returned an error",
			},
			[]string{"op"},
		),
		walReplayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_wal_replayed_entries_total",
				Help: "Total number of WAL entries replayed at table open",
			},
		),
		walCorrupt: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_wal_corruptions_total",
				Help: "Total number of corrupt WAL tails dropped during replay",
			},
		),
		segments: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_live_segments",
				Help: "Number of live segment files per table",
			},
			[]string{"namespace", "table"},
		),
	}
}

// IncOp counts one completed engine operation.
func (m *Metrics) IncOp(op string) {
	m.opsTotal.WithLabelValues(op).Inc()
}

// IncOpError counts one failed engine operation.
func (m *Metrics) IncOpError(op string) {
	m.opErrors.WithLabelValues(op).Inc()
}

// ObserveReplay records the outcome of a table-open WAL replay.
func (m *Metrics) ObserveReplay(entries int, corrupted bool) {
	m.walReplayed.Add(float64(entries))
	if corrupted {
		m.walCorrupt.Inc()
	}
}

// SetSegments records the live segment count for a table.
func (m *Metrics) SetSegments(namespace, table string, n int) {
	m.segments.WithLabelValues(namespace, table).Set(float64(n))
}
