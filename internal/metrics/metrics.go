// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rank_tracker/internal/model"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_runs_total",
		Help: "Pipeline runs by kind and outcome.",
	}, []string{"kind", "ok"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_run_duration_seconds",
		Help:    "Duration of pipeline runs.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"kind"})

	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_snapshots_total",
		Help: "Snapshot writes by result (created, updated, skipped).",
	}, []string{"result"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_alerts_total",
		Help: "Alerts raised by type and severity.",
	}, []string{"type", "severity"})

	SourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_source_errors_total",
		Help: "Failed calls to external data sources.",
	}, []string{"source"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// ObserveRun records a finished pipeline run.
func ObserveRun(kind string, ok bool, seconds float64) {
	RunsTotal.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
	RunDuration.WithLabelValues(kind).Observe(seconds)
}

// AddSnapshots counts snapshot writes for one result label.
func AddSnapshots(result string, n int) {
	if n > 0 {
		SnapshotsTotal.WithLabelValues(result).Add(float64(n))
	}
}

// IncAlert counts one raised alert.
func IncAlert(typ model.AlertType, sev model.Severity) {
	AlertsTotal.WithLabelValues(string(typ), string(sev)).Inc()
}

// IncSourceError counts one failed source call.
func IncSourceError(source string) {
	SourceErrorsTotal.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, path string, status int, seconds float64) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(seconds)
}
