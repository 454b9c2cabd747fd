// Package observability exposes Prometheus metrics for pipeline runs.
// Collectors live on an isolated registry owned by the app instance, so
// tests and embedded uses never fight over the global default registry.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abca4/fafpipe/internal/engine"
)

// Metrics holds the run-level collectors.
type Metrics struct {
	registry    *prometheus.Registry
	jobOutcomes *prometheus.CounterVec
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fafpipe",
			Name:      "job_outcomes_total",
			Help:      "Job outcomes per status across all runs of this process.",
		}, []string{"job", "status"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fafpipe",
			Name:      "runs_total",
			Help:      "Finished runs by overall result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fafpipe",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	m.registry.MustRegister(m.jobOutcomes, m.runsTotal, m.runDuration)
	return m
}

// ObserveRun records one finished run report.
func (m *Metrics) ObserveRun(report *engine.Report) {
	for _, outcome := range report.Outcomes {
		m.jobOutcomes.WithLabelValues(outcome.Job, outcome.Status.String()).Inc()
	}

	result := "successful"
	if !report.Successful() {
		result = "unsuccessful"
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
