// Package metrics provides Prometheus metrics for the triage backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low cardinality: no run IDs, file names or URLs.

var (
	// IndexRunsTotal counts finished index runs by outcome (complete/error).
	IndexRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_index_runs_total",
		Help: "Total number of index runs, by outcome.",
	}, []string{"outcome"})

	// IndexDuration observes wall time of index runs.
	IndexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_index_duration_seconds",
		Help:    "Duration of index runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// LinesIndexed counts merged corpus lines scanned by the indexer.
	LinesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_lines_indexed_total",
		Help: "Total number of log lines scanned by the indexer.",
	})

	// RecordsClassified counts classifier output by record kind.
	RecordsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_records_classified_total",
		Help: "Total number of records produced by the classifier, by kind.",
	}, []string{"kind"})

	// FileReadErrors counts per-file read failures during ingestion.
	FileReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_file_read_errors_total",
		Help: "Total number of log files that could not be read.",
	})

	// ActiveRuns tracks index runs currently held in memory.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_active_runs",
		Help: "Current number of index runs held in memory.",
	})

	// LayoutDisplacementCapped counts layouts that hit the displacement pass cap.
	LayoutDisplacementCapped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_layout_displacement_capped_total",
		Help: "Total number of layouts whose overlap resolution hit the pass cap.",
	})

	// RuleReloads counts user rule file reloads by result (ok/error).
	RuleReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_rule_reloads_total",
		Help: "Total number of user marker rule reloads, by result.",
	}, []string{"result"})

	// ExportsWritten counts export bundles written to disk by result (ok/error).
	ExportsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_exports_written_total",
		Help: "Total number of export bundles written, by result.",
	}, []string{"result"})

	// CompanionClients tracks connected companion viewers.
	CompanionClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_companion_clients",
		Help: "Current number of connected companion viewer clients.",
	})
)

// RecordIndexRun records the outcome and duration of one index run.
func RecordIndexRun(outcome string, seconds float64) {
	IndexRunsTotal.WithLabelValues(outcome).Inc()
	IndexDuration.Observe(seconds)
}

// RecordClassified adds n records of kind.
func RecordClassified(kind string, n int) {
	if n > 0 {
		RecordsClassified.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordRuleReload records a user rule reload.
func RecordRuleReload(ok bool) {
	RuleReloads.WithLabelValues(result(ok)).Inc()
}

// RecordExport records one export bundle write.
func RecordExport(ok bool) {
	ExportsWritten.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
