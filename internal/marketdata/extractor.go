package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "marketpulse/internal/errors"
	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

// Ticker outcome statuses
const (
	StatusFetched = "fetched"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

// TickerOutcome is the per-ticker result of an extraction
type TickerOutcome struct {
	Ticker string `json:"ticker"`
	Status string `json:"status"`
	Bars   int    `json:"bars"`
	Error  string `json:"error,omitempty"`
}

// Bronze is the raw layer of a run: one series per ticker that did not
// fail, each in ascending date order.
type Bronze struct {
	Window   Window
	Tickers  []string
	Series   map[string][]domain.RawBar
	Outcomes []TickerOutcome
}

// Rows returns the total number of raw bars
func (b *Bronze) Rows() int {
	n := 0
	for _, s := range b.Series {
		n += len(s)
	}
	return n
}

// ExtractorConfig tunes the fetch loop
type ExtractorConfig struct {
	LookbackDays      int
	Concurrency       int
	RequestsPerSecond float64
}

// Extractor pulls the Bronze layer from a Provider
type Extractor struct {
	provider Provider
	calendar *TradingCalendar
	reporter reporting.Reporter
	logger   *slog.Logger
	cfg      ExtractorConfig
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewExtractor creates an extractor. A nil reporter discards events.
func NewExtractor(provider Provider, cal *TradingCalendar, reporter reporting.Reporter, logger *slog.Logger, cfg ExtractorConfig) *Extractor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 252
	}
	limit := rate.Inf
	burst := cfg.Concurrency
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	return &Extractor{
		provider: provider,
		calendar: cal,
		reporter: reporter,
		logger:   logger.With(slog.String("component", "extractor"), slog.String("provider", provider.Name())),
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for deterministic windows in tests
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract fetches every ticker over the lookback window. Unknown tickers
// produce an empty series and other per-ticker failures leave the ticker out.
// A rejected credential or a provider that could not be reached for any
// ticker aborts the extraction.
func (e *Extractor) Extract(ctx context.Context, tickers []string) (*Bronze, error) {
	window := e.calendar.Window(e.now(), e.cfg.LookbackDays)
	e.logger.InfoContext(ctx, "extraction started",
		slog.Int("tickers", len(tickers)),
		slog.String("from", window.From.Format(domain.DateFormat)),
		slog.String("to", window.To.Format(domain.DateFormat)),
		slog.Int("trading_days", window.TradingDays),
		slog.Bool("calendar_fallback", e.calendar.Fallback()))

	series := make([][]domain.RawBar, len(tickers))
	failures := make([]error, len(tickers))
	outcomes := make([]TickerOutcome, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, ticker := range tickers {
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}

			bars, err := e.provider.FetchDaily(gctx, ticker, window.From, window.To)
			switch {
			case err == nil:
				sort.SliceStable(bars, func(a, b int) bool { return bars[a].Date.Before(bars[b].Date) })
				series[i] = bars
				outcomes[i] = TickerOutcome{Ticker: ticker, Status: StatusFetched, Bars: len(bars)}
				if len(bars) == 0 {
					outcomes[i].Status = StatusEmpty
				}
				e.reporter.Record(gctx, reporting.EventTickerFetched,
					slog.String("ticker", ticker), slog.Int("bars", len(bars)))
				return nil

			case isNotFound(err):
				series[i] = []domain.RawBar{}
				outcomes[i] = TickerOutcome{Ticker: ticker, Status: StatusEmpty, Error: err.Error()}
				e.reporter.Record(gctx, reporting.EventTickerEmpty,
					slog.String("ticker", ticker), slog.String("reason", "not_found"))
				return nil

			case apperrors.IsType(err, apperrors.ErrTypeAuth):
				return fmt.Errorf("fetch %s: %w", ticker, err)

			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err

			default:
				failures[i] = err
				outcomes[i] = TickerOutcome{Ticker: ticker, Status: StatusFailed, Error: err.Error()}
				e.reporter.Record(gctx, reporting.EventTickerFailed,
					slog.String("ticker", ticker), slog.String("error", err.Error()))
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	bronze := &Bronze{
		Window:   window,
		Tickers:  append([]string(nil), tickers...),
		Series:   make(map[string][]domain.RawBar, len(tickers)),
		Outcomes: outcomes,
	}

	succeeded := 0
	var connectivity error
	for i, ticker := range tickers {
		if failures[i] != nil {
			if connectivity == nil && apperrors.IsType(failures[i], apperrors.ErrTypeNetwork) {
				connectivity = failures[i]
			}
			continue
		}
		succeeded++
		bronze.Series[ticker] = series[i]
	}

	if succeeded == 0 && connectivity != nil {
		return nil, apperrors.NewNetworkError("no ticker could be fetched",
			fmt.Errorf("%w: %w", ErrProviderUnavailable, connectivity))
	}

	e.logger.InfoContext(ctx, "extraction completed",
		slog.Int("tickers_ok", succeeded),
		slog.Int("tickers_failed", len(tickers)-succeeded),
		slog.Int("rows", bronze.Rows()))

	return bronze, nil
}
