package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

func TestAggregate_WorkedExample(t *testing.T) {
	bars, _ := CleanSeries([]domain.RawBar{
		rawBar("AAPL", 2, 90, 101, 89, 100, 1000),
		rawBar("AAPL", 3, 100, 111, 99, 110, 500),
	}, CleanOptions{})

	s := Aggregate("AAPL", bars)

	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, 2, s.TradingDays)
	assert.Equal(t, "2024-01-02", s.FirstDate.String)
	assert.Equal(t, "2024-01-03", s.LastDate.String)
	assert.Equal(t, 110.0, s.ClosingPrice.Float64)
	assert.Equal(t, int64(1500), s.TotalVolume)
	assert.Equal(t, 0.1056, domain.Round(s.AvgDailyVariation.Float64, 4))
	assert.InDelta(t, 0.005556, s.VariationStdDev.Float64, 1e-6)
	assert.InDelta(t, 10.0, s.PeriodChangePct.Float64, 1e-9)
}

func TestAggregate_SingleBar(t *testing.T) {
	bars, _ := CleanSeries([]domain.RawBar{rawBar("JNJ", 2, 10, 11, 9, 10.5, 300)}, CleanOptions{})

	s := Aggregate("JNJ", bars)
	assert.Equal(t, 1, s.TradingDays)
	assert.Equal(t, s.FirstDate, s.LastDate)
	assert.Equal(t, 0.0, s.VariationStdDev.Float64)
	assert.True(t, s.VariationStdDev.Valid)
	assert.Equal(t, 0.0, s.PeriodChangePct.Float64)
}

func TestAggregate_NoBars(t *testing.T) {
	s := Aggregate("TSLA", nil)

	assert.True(t, s.Empty())
	assert.Equal(t, "TSLA", s.Ticker)
	assert.Equal(t, int64(0), s.TotalVolume)
	assert.False(t, s.FirstDate.Valid)
	assert.False(t, s.LastDate.Valid)
	assert.False(t, s.ClosingPrice.Valid)
	assert.False(t, s.AvgDailyVariation.Valid)
	assert.False(t, s.VariationStdDev.Valid)
	assert.False(t, s.PeriodChangePct.Valid)
}

func TestBuildGold_OneRowPerTicker(t *testing.T) {
	silver := map[string][]domain.CleanedBar{
		"MSFT": {{Ticker: "MSFT", Date: day(2), Open: 10, High: 11, Low: 9, Close: 10, Volume: 5}},
		"ZZZZ": {{Ticker: "ZZZZ", Date: day(2), Open: 10, High: 11, Low: 9, Close: 10, Volume: 5}},
	}
	tickers := []string{"TSLA", "MSFT", "AAPL"}

	gold := NewSummarizer(nil).BuildGold(context.Background(), tickers, silver)

	require.NoError(t, domain.ValidateGold(tickers, gold))
	assert.True(t, gold[0].Empty())
	assert.Equal(t, 1, gold[1].TradingDays)
	assert.True(t, gold[2].Empty())
}

func TestTransformer_Transform(t *testing.T) {
	rec := reporting.NewRecorder()
	tr := NewTransformer(CleanOptions{}, rec, nil)
	tickers := []string{"MSFT", "AAPL", "TSLA"}

	res, err := tr.Transform(context.Background(), tickers, map[string][]domain.RawBar{
		"AAPL": {
			rawBar("AAPL", 3, 100, 111, 99, 110, 500),
			rawBar("AAPL", 2, 90, 101, 89, 100, 1000),
		},
		"MSFT": {
			rawBar("MSFT", 2, 10, 11, 9, 0, 100),
		},
		"TSLA": {},
	})
	require.NoError(t, err)

	require.Len(t, res.Silver, 2)
	assert.Equal(t, "AAPL", res.Silver[0].Ticker)
	assert.Equal(t, day(2), res.Silver[0].Date)

	require.Len(t, res.Gold, 3)
	assert.Equal(t, "MSFT", res.Gold[0].Ticker)
	assert.True(t, res.Gold[0].Empty())
	assert.Equal(t, int64(1500), res.Gold[1].TotalVolume)
	assert.True(t, res.Gold[2].Empty())
	assert.Equal(t, 1, rec.Count(reporting.EventRowDropped))
}

func TestTransformer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTransformer(CleanOptions{}, nil, nil).Transform(ctx, []string{"AAPL"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
