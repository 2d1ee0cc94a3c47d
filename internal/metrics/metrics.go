package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Progress events that arrived before any tracking record existed.
	// These are silently dropped by design; the counter keeps them
	// visible to operators.
	OrphanProgressEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "effectiveness_orphan_progress_total",
			Help: "Milestone progress events with no matching effectiveness record",
		},
	)

	// Calendar deadline resolutions, split by outcome tag.
	DeadlineAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_deadline_adjustments_total",
			Help: "Deadline adjustment resolutions by recommendation",
		},
		[]string{"recommendation"},
	)

	// Optimizer runs and the changes they applied.
	OptimizationChangesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "optimizer_changes_applied_total",
			Help: "Low-risk optimization changes auto-applied to templates",
		},
	)

	// Per-item outcomes of bulk template operations.
	BulkOperationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_bulk_operation_items_total",
			Help: "Bulk template operation item outcomes",
		},
		[]string{"action", "outcome"},
	)

	TemplateVersionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "template_versions_created_total",
			Help: "Template versions appended to the ledger",
		},
	)
)
