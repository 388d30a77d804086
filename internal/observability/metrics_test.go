package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestGradingCountersAreRegisteredOnce(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	counter := Gradings().WithLabelValues("gpt-test", "success")
	counter.Inc()
	counter.Inc()

	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	require.InDelta(t, 2, metric.GetCounter().GetValue(), 0.0001)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	BatchRuns().WithLabelValues("completed").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "assessor_batch_runs_total")
}
