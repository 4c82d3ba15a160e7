package dataprocessing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func rawBar(ticker string, d int, o, h, l, c float64, v int64) domain.RawBar {
	return domain.RawBar{
		Ticker: ticker,
		Date:   day(d),
		Open:   null.FloatFrom(o),
		High:   null.FloatFrom(h),
		Low:    null.FloatFrom(l),
		Close:  null.FloatFrom(c),
		Volume: null.IntFrom(v),
	}
}

func TestCleanSeries_WorkedExample(t *testing.T) {
	raws := []domain.RawBar{
		rawBar("AAPL", 3, 100, 111, 99, 110, 500),
		rawBar("AAPL", 2, 90, 101, 89, 100, 1000),
	}

	bars, drops := CleanSeries(raws, CleanOptions{})
	require.Empty(t, drops)
	require.Len(t, bars, 2)

	assert.Equal(t, day(2), bars[0].Date)
	assert.Equal(t, day(3), bars[1].Date)
	assert.InDelta(t, 0.1111, bars[0].Variation, 1e-4)
	assert.InDelta(t, 0.10, bars[1].Variation, 1e-9)
	assert.Equal(t, 0.0, bars[0].ChangePct)
	assert.InDelta(t, 10.0, bars[1].ChangePct, 1e-9)
}

func TestCleanSeries_Exclusions(t *testing.T) {
	missingClose := rawBar("MSFT", 2, 10, 11, 9, 10, 100)
	missingClose.Close = null.Float{}
	missingVolume := rawBar("MSFT", 2, 10, 11, 9, 10, 100)
	missingVolume.Volume = null.Int{}

	tests := []struct {
		name   string
		raw    domain.RawBar
		reason string
	}{
		{name: "missing close", raw: missingClose, reason: DropMissingPrice},
		{name: "zero close", raw: rawBar("MSFT", 2, 10, 11, 9, 0, 100), reason: DropNonPositivePrice},
		{name: "negative open", raw: rawBar("MSFT", 2, -1, 11, 9, 10, 100), reason: DropNonPositivePrice},
		{name: "nan high", raw: rawBar("MSFT", 2, 10, math.NaN(), 9, 10, 100), reason: DropNonFinitePrice},
		{name: "infinite low", raw: rawBar("MSFT", 2, 10, 11, math.Inf(1), 10, 100), reason: DropNonFinitePrice},
		{name: "missing volume", raw: missingVolume, reason: DropMissingVolume},
		{name: "zero volume", raw: rawBar("MSFT", 2, 10, 11, 9, 10, 0), reason: DropNonPositiveVol},
		{name: "high below low", raw: rawBar("MSFT", 2, 10, 8, 9, 10, 100), reason: DropHighBelowLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, drops := CleanSeries([]domain.RawBar{tt.raw}, CleanOptions{})
			assert.Empty(t, bars)
			require.Len(t, drops, 1)
			assert.Equal(t, tt.reason, drops[0].Reason)
			assert.Equal(t, day(2), drops[0].Date)
		})
	}
}

func TestCleanSeries_DuplicateDateKeepsLast(t *testing.T) {
	raws := []domain.RawBar{
		rawBar("JPM", 2, 10, 11, 9, 10, 100),
		rawBar("JPM", 3, 10, 12, 9, 11, 100),
		rawBar("JPM", 2, 10, 11, 9, 10.5, 200),
	}

	bars, drops := CleanSeries(raws, CleanOptions{})
	require.Len(t, bars, 2)
	require.Len(t, drops, 1)
	assert.Equal(t, DropDuplicateDate, drops[0].Reason)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, int64(200), bars[0].Volume)
	assert.InDelta(t, (11/10.5-1)*100, bars[1].ChangePct, 1e-9)
}

func TestCleanSeries_ChangePctSkipsDroppedRows(t *testing.T) {
	raws := []domain.RawBar{
		rawBar("NVDA", 2, 10, 11, 9, 10, 100),
		rawBar("NVDA", 3, 10, 11, 9, 0, 100),
		rawBar("NVDA", 4, 10, 13, 9, 12, 100),
	}

	bars, _ := CleanSeries(raws, CleanOptions{})
	require.Len(t, bars, 2)
	assert.InDelta(t, 20.0, bars[1].ChangePct, 1e-9)
}

func TestCleanSeries_AdjustPrices(t *testing.T) {
	raw := rawBar("AAPL", 2, 90, 101, 89, 100, 1000)
	raw.AdjClose = null.FloatFrom(50)

	adjusted, _ := CleanSeries([]domain.RawBar{raw}, CleanOptions{AdjustPrices: true})
	require.Len(t, adjusted, 1)
	assert.Equal(t, 45.0, adjusted[0].Open)
	assert.Equal(t, 50.5, adjusted[0].High)
	assert.Equal(t, 44.5, adjusted[0].Low)
	assert.Equal(t, 50.0, adjusted[0].Close)
	assert.InDelta(t, 0.1111, adjusted[0].Variation, 1e-4)

	unadjusted, _ := CleanSeries([]domain.RawBar{raw}, CleanOptions{})
	assert.Equal(t, 100.0, unadjusted[0].Close)

	raw.AdjClose = null.FloatFrom(0)
	ignored, _ := CleanSeries([]domain.RawBar{raw}, CleanOptions{AdjustPrices: true})
	assert.Equal(t, 100.0, ignored[0].Close)
}

func TestCleanSeries_Idempotent(t *testing.T) {
	first := rawBar("TSLA", 2, 200, 210, 190, 205, 1000)
	first.AdjClose = null.FloatFrom(102.5)
	raws := []domain.RawBar{
		first,
		rawBar("TSLA", 3, 205, 215, 200, 210, 1500),
		rawBar("TSLA", 4, 0, 215, 200, 210, 1500),
	}
	opts := CleanOptions{AdjustPrices: true}

	once, _ := CleanSeries(raws, opts)
	again := make([]domain.RawBar, len(once))
	for i, b := range once {
		again[i] = b.Raw()
	}
	twice, drops := CleanSeries(again, opts)

	assert.Empty(t, drops)
	assert.Equal(t, once, twice)
}

func TestCleanSeries_Deterministic(t *testing.T) {
	raws := []domain.RawBar{
		rawBar("META", 5, 10, 11, 9, 10, 100),
		rawBar("META", 2, 10, 11, 9, 11, 100),
		rawBar("META", 4, 10, 11, 9, 9, 100),
	}

	a, _ := CleanSeries(raws, CleanOptions{})
	b, _ := CleanSeries(raws, CleanOptions{})
	assert.Equal(t, a, b)
}

func TestCleaner_ReportsDrops(t *testing.T) {
	rec := reporting.NewRecorder()
	cleaner := NewCleaner(CleanOptions{}, rec, nil)

	bars := cleaner.Clean(context.Background(), "AAPL", []domain.RawBar{
		rawBar("AAPL", 2, 10, 11, 9, 10, 100),
		rawBar("AAPL", 2, 10, 11, 9, 10, 100),
		rawBar("AAPL", 3, 10, 11, 9, -1, 100),
	})

	assert.Len(t, bars, 1)
	assert.Equal(t, 1, rec.Count(reporting.EventDuplicateDate))
	dropped := rec.Filter(reporting.EventRowDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, "AAPL", dropped[0].Fields["ticker"])
	assert.Equal(t, "2024-01-03", dropped[0].Fields["date"])
	assert.Equal(t, DropNonPositivePrice, dropped[0].Fields["reason"])
}
