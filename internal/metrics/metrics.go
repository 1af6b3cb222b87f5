// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal   *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram
	tierResultsTotal     *prometheus.CounterVec
	reconcileTotal       *prometheus.CounterVec
	runsTotal            *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "HTTP fetch attempts, labeled by outcome (success, retry, failure).",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Latency of individual HTTP fetch attempts.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		tierResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_tier_results_total",
				Help: "Harvest tier executions, labeled by tier and result.",
			},
			[]string{"tier", "result"},
		)

		reconcileTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_reconcile_outcomes_total",
				Help: "Reconcile outcomes (no_change, skipped, uploaded).",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Completed runs, labeled by status (succeeded, failed).",
			},
			[]string{"status"},
		)
	})
}

// ObserveFetchAttempt records one fetch attempt and its latency.
func ObserveFetchAttempt(outcome string, duration time.Duration) {
	if fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveTier records a tier execution result.
func ObserveTier(tier, result string) {
	if tierResultsTotal == nil {
		return
	}
	tierResultsTotal.WithLabelValues(tier, result).Inc()
}

// ObserveReconcile records a reconcile outcome.
func ObserveReconcile(outcome string) {
	if reconcileTotal == nil {
		return
	}
	reconcileTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records the terminal status of a run.
func ObserveRun(status string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(status).Inc()
}
