package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketpulse/internal/errors"
	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

type fakeProvider struct {
	mu      sync.Mutex
	series  map[string][]domain.RawBar
	errs    map[string]error
	calls   []string
	from    time.Time
	to      time.Time
	onFetch func()
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.from, f.to = from, to
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch()
	}
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	return f.series[ticker], nil
}

func rawBar(ticker string, d time.Time, close float64) domain.RawBar {
	return domain.RawBar{
		Ticker: ticker, Date: d,
		Open: null.FloatFrom(close), High: null.FloatFrom(close), Low: null.FloatFrom(close),
		Close: null.FloatFrom(close), Volume: null.IntFrom(100),
	}
}

func newTestExtractor(p Provider, rec reporting.Reporter) *Extractor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExtractor(p, WeekdayCalendar(time.UTC), rec, logger, ExtractorConfig{
		LookbackDays: 5, Concurrency: 3,
	})
	return e.WithClock(func() time.Time { return time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC) })
}

func TestExtractor_OrderAndOutcomes(t *testing.T) {
	p := &fakeProvider{
		series: map[string][]domain.RawBar{
			"AAPL": {rawBar("AAPL", date(2024, 1, 9), 2), rawBar("AAPL", date(2024, 1, 8), 1)},
			"MSFT": {rawBar("MSFT", date(2024, 1, 9), 3)},
		},
		errs: map[string]error{
			"ZZZZ": fmt.Errorf("%w: delisted", ErrTickerNotFound),
			"TSLA": apperrors.NewParsingError("decode response", errors.New("unexpected EOF")),
		},
	}
	rec := reporting.NewRecorder()

	bronze, err := newTestExtractor(p, rec).Extract(context.Background(), []string{"MSFT", "ZZZZ", "TSLA", "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, date(2024, 1, 4), p.from)
	assert.Equal(t, date(2024, 1, 10), p.to)
	assert.Equal(t, Window{From: date(2024, 1, 4), To: date(2024, 1, 10), TradingDays: 5}, bronze.Window)

	assert.Len(t, bronze.Series, 3, "failed ticker is absent")
	assert.NotContains(t, bronze.Series, "TSLA")
	assert.Empty(t, bronze.Series["ZZZZ"])

	aapl := bronze.Series["AAPL"]
	require.Len(t, aapl, 2)
	assert.True(t, aapl[0].Date.Before(aapl[1].Date), "series is ascending")

	require.Len(t, bronze.Outcomes, 4)
	assert.Equal(t, TickerOutcome{Ticker: "MSFT", Status: StatusFetched, Bars: 1}, bronze.Outcomes[0])
	assert.Equal(t, StatusEmpty, bronze.Outcomes[1].Status)
	assert.Equal(t, StatusFailed, bronze.Outcomes[2].Status)
	assert.Equal(t, "AAPL", bronze.Outcomes[3].Ticker)
	assert.Equal(t, 3, bronze.Rows())

	assert.Equal(t, 1, rec.Count(reporting.EventTickerFailed))
	assert.Equal(t, 1, rec.Count(reporting.EventTickerEmpty))
	assert.Equal(t, 2, rec.Count(reporting.EventTickerFetched))
}

func TestExtractor_AuthFailureIsFatal(t *testing.T) {
	p := &fakeProvider{
		series: map[string][]domain.RawBar{"AAPL": {rawBar("AAPL", date(2024, 1, 9), 2)}},
		errs:   map[string]error{"MSFT": apperrors.NewAuthError("provider rejected credentials (HTTP 401)", nil)},
	}

	_, err := newTestExtractor(p, nil).Extract(context.Background(), []string{"AAPL", "MSFT"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
	assert.Contains(t, err.Error(), "MSFT")
}

func TestExtractor_TotalConnectivityFailure(t *testing.T) {
	down := apperrors.NewNetworkError("request failed", errors.New("connection refused"))
	p := &fakeProvider{errs: map[string]error{"AAPL": down, "MSFT": down, "JPM": down}}

	_, err := newTestExtractor(p, nil).Extract(context.Background(), []string{"AAPL", "MSFT", "JPM"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}

func TestExtractor_PartialConnectivityFailureIsNotFatal(t *testing.T) {
	down := apperrors.NewNetworkError("request failed", errors.New("connection reset"))
	p := &fakeProvider{
		series: map[string][]domain.RawBar{"AAPL": {rawBar("AAPL", date(2024, 1, 9), 2)}},
		errs:   map[string]error{"MSFT": down},
	}

	bronze, err := newTestExtractor(p, nil).Extract(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	assert.Len(t, bronze.Series, 1)
}

func TestExtractor_OnlyNotFoundIsNotFatal(t *testing.T) {
	p := &fakeProvider{errs: map[string]error{"ZZZZ": ErrTickerNotFound}}

	bronze, err := newTestExtractor(p, nil).Extract(context.Background(), []string{"ZZZZ"})
	require.NoError(t, err)
	assert.Contains(t, bronze.Series, "ZZZZ")
	assert.Empty(t, bronze.Series["ZZZZ"])
}

func TestExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{onFetch: cancel}

	_, err := newTestExtractor(p, nil).Extract(ctx, []string{"AAPL", "MSFT", "GOOGL", "AMZN"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
