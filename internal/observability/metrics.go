package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	gradingsTotal          *prometheus.CounterVec
	gradingDurationSeconds *prometheus.HistogramVec
	batchRunsTotal         *prometheus.CounterVec
	batchesInFlight        prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the grading core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessor",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assessor",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessor",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessor",
			Name:      "gradings_total",
			Help:      "Graded submissions partitioned by outcome.",
		}, []string{"model", "outcome"})

		gradingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assessor",
			Name:      "grading_duration_seconds",
			Help:      "Wall time spent grading a single submission.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"model"})

		batchRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessor",
			Name:      "batch_runs_total",
			Help:      "Batch grading runs partitioned by final status.",
		}, []string{"status"})

		batchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assessor",
			Name:      "batches_in_flight",
			Help:      "Batch grading runs currently executing.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gradingsTotal, gradingDurationSeconds, batchRunsTotal, batchesInFlight,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Gradings exposes the per-outcome grading counter.
func Gradings() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingsTotal
}

// GradingDuration exposes the per-submission duration histogram.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDurationSeconds
}

// BatchRuns exposes the batch completion counter.
func BatchRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return batchRunsTotal
}

// BatchesInFlight exposes the running batch gauge.
func BatchesInFlight() prometheus.Gauge {
	RegisterMetrics()
	return batchesInFlight
}
