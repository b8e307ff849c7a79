// Package metrics exposes engine counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements service.Recorder on prometheus counters
type Metrics struct {
	actionsTotal   *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
}

// New creates the engine metrics and registers them with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "actions_total",
			Help:      "Workflow actions applied, by action kind.",
		}, []string{"action"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "version_conflicts_total",
			Help:      "Actions refused because the expected version was stale, by action kind.",
		}, []string{"action"}),
	}
	reg.MustRegister(m.actionsTotal, m.conflictsTotal)
	return m
}

// ActionApplied counts one successfully applied action
func (m *Metrics) ActionApplied(kind string) {
	m.actionsTotal.WithLabelValues(kind).Inc()
}

// ConflictDetected counts one optimistic-concurrency conflict
func (m *Metrics) ConflictDetected(kind string) {
	m.conflictsTotal.WithLabelValues(kind).Inc()
}
