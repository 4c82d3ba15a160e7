package reporting

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	rec.Record(ctx, EventRowDropped, slog.String("ticker", "AAPL"), slog.String("reason", "non_positive_close"))
	rec.Record(ctx, EventTickerFailed, slog.String("ticker", "MSFT"))
	rec.Record(ctx, EventRowDropped, slog.String("ticker", "AAPL"), slog.String("reason", "missing_volume"))

	assert.Len(t, rec.Entries(), 3)
	assert.Equal(t, 2, rec.Count(EventRowDropped))

	dropped := rec.Filter(EventRowDropped)
	assert.Equal(t, "non_positive_close", dropped[0].Fields["reason"])
	assert.Equal(t, "AAPL", dropped[1].Fields["ticker"])
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(context.Background(), EventTickerFetched)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, rec.Count(EventTickerFetched))
}

func TestSlogReporter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := NewSlogReporter(logger)

	r.Record(context.Background(), EventRowDropped, slog.String("ticker", "AAPL"))
	r.Record(context.Background(), EventTickerFailed, slog.String("ticker", "MSFT"))

	out := buf.String()
	assert.NotContains(t, out, EventRowDropped, "row drops log at debug")
	assert.Contains(t, out, EventTickerFailed)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"component":"reporter"`)
}

func TestMetricReporter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := provider.Meter("test").Int64Counter("etl.events")
	require.NoError(t, err)

	r := NewMetricReporter(counter)
	ctx := context.Background()
	r.Record(ctx, EventRowDropped, slog.String("ticker", "AAPL"), slog.Int("row", 3))
	r.Record(ctx, EventRowDropped, slog.String("ticker", "AAPL"), slog.Int("row", 4))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1, "row index is not a label")
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b, Nop{}}
	m.Record(context.Background(), EventTableReplaced, slog.String("table", "Summary"))

	assert.Equal(t, 1, a.Count(EventTableReplaced))
	assert.Equal(t, 1, b.Count(EventTableReplaced))
}
