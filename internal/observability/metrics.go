// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions counts gate outcomes for page requests.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spekulus_gate_decisions_total",
		Help: "Maintenance gate decisions by outcome",
	}, []string{"decision"})

	// GateStoreFailures counts page requests let through because settings could not be read.
	GateStoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spekulus_gate_store_failures_total",
		Help: "Page requests allowed through after a settings or page-status read failure",
	})

	// MaintenanceTransitions counts operator actions on the maintenance switch by action and result.
	MaintenanceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spekulus_maintenance_transitions_total",
		Help: "Admin maintenance actions by action and result",
	}, []string{"action", "result"})

	// AuditWriteFailures counts audit entries that could not be persisted.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spekulus_audit_write_failures_total",
		Help: "Audit log entries dropped because the store rejected them",
	})

	// MaintenanceActive is 1 while the stored maintenance flag is effectively on,
	// as last observed by the admin status read.
	MaintenanceActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spekulus_maintenance_active",
		Help: "Whether site-wide maintenance was effective at the last status read",
	})
)
