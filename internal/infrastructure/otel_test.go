package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTel_MetricsExposed(t *testing.T) {
	ctx := context.Background()
	providers, err := InitializeOTel(ctx, config.TelemetryConfig{
		ServiceName:    "marketpulse-test",
		TraceExporter:  "none",
		MetricsEnabled: true,
	}, "test", discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(ctx)

	require.NotNil(t, providers.Metrics)
	providers.Metrics.RecordRun(ctx, "success", 2*time.Second)
	providers.Metrics.RecordStage(ctx, "extract", true, time.Second)
	providers.Metrics.RecordRows(ctx, "csv", "Summary", 10)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "etl_runs_total")
	assert.Contains(t, joined, "etl_rows_written_total")
	assert.Contains(t, joined, "etl_stage_duration_seconds")

	rec := httptest.NewRecorder()
	providers.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "etl_runs_total")
}

func TestInitializeOTel_MetricsDisabled(t *testing.T) {
	ctx := context.Background()
	providers, err := InitializeOTel(ctx, config.TelemetryConfig{
		ServiceName:   "marketpulse-test",
		TraceExporter: "none",
	}, "test", discardLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.MeterProvider)
	require.NotNil(t, providers.Metrics)
	providers.Metrics.RecordRun(ctx, "success", time.Second)
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_UnknownExporter(t *testing.T) {
	_, err := InitializeOTel(context.Background(), config.TelemetryConfig{
		ServiceName:   "x",
		TraceExporter: "zipkin",
	}, "test", discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}

func TestPushMetrics(t *testing.T) {
	var gotPath string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	ctx := context.Background()
	providers, err := InitializeOTel(ctx, config.TelemetryConfig{
		ServiceName:    "marketpulse-test",
		TraceExporter:  "none",
		MetricsEnabled: true,
	}, "test", discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(ctx)

	providers.Metrics.RecordRun(ctx, "success", time.Second)

	require.NoError(t, providers.PushMetrics(ctx, gateway.URL, "marketpulse_etl"))
	assert.Equal(t, "/metrics/job/marketpulse_etl", gotPath)

	assert.NoError(t, providers.PushMetrics(ctx, "", "ignored"), "empty url is a no-op")
}

func TestRecordSpanError_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordSpanError(context.Background(), errors.New("boom"))
		RecordSpanError(context.Background(), nil)
	})
}
