package dataprocessing

import (
	"context"
	"log/slog"
	"math"

	"github.com/guregu/null/v6"

	"marketpulse/pkg/contracts/domain"
)

// Aggregate reduces one ticker's Silver rows to its Gold summary. bars must
// be sorted by date, as CleanSeries returns them. Zero bars yield the
// null-metric summary.
func Aggregate(ticker string, bars []domain.CleanedBar) domain.MetricSummary {
	if len(bars) == 0 {
		return domain.EmptySummary(ticker)
	}

	first, last := bars[0], bars[len(bars)-1]

	var volume int64
	var sum float64
	for _, b := range bars {
		volume += b.Volume
		sum += b.Variation
	}
	n := float64(len(bars))
	mean := sum / n

	var sq float64
	for _, b := range bars {
		d := b.Variation - mean
		sq += d * d
	}

	return domain.MetricSummary{
		Ticker:            ticker,
		TradingDays:       len(bars),
		FirstDate:         null.StringFrom(first.DateString()),
		LastDate:          null.StringFrom(last.DateString()),
		ClosingPrice:      null.FloatFrom(last.Close),
		TotalVolume:       volume,
		AvgDailyVariation: null.FloatFrom(mean),
		VariationStdDev:   null.FloatFrom(math.Sqrt(sq / n)),
		PeriodChangePct:   null.FloatFrom((last.Close/first.Close - 1) * 100),
	}
}

// Summarizer builds the Gold layer
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a new summarizer
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger}
}

// BuildGold returns one summary per configured ticker, in configured order.
// Tickers absent from silver get the null-metric summary.
func (s *Summarizer) BuildGold(ctx context.Context, tickers []string, silver map[string][]domain.CleanedBar) []domain.MetricSummary {
	gold := make([]domain.MetricSummary, 0, len(tickers))
	empty := 0
	for _, ticker := range tickers {
		summary := Aggregate(ticker, silver[ticker])
		if summary.Empty() {
			empty++
		}
		gold = append(gold, summary)
	}

	s.logger.InfoContext(ctx, "gold layer built",
		slog.Int("tickers", len(tickers)),
		slog.Int("without_data", empty))

	return gold
}
