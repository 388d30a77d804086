package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assessor",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of completion requests sent to the grading provider",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"provider", "model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of completion requests that failed",
	}, []string{"provider", "model"})
)

func observe(provider, model string, start time.Time) {
	generationDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}

func fail(span trace.Span, provider, model string, err error) *APIError {
	generationFailures.WithLabelValues(provider, model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return apiError(provider, model, err)
}
