package domain

import (
	"fmt"

	"github.com/guregu/null/v6"
)

// MetricSummary is one Gold row: the aggregate view of a single ticker over
// the run window. Exactly one summary exists per configured ticker, even when
// no bar survived cleaning. In that case TradingDays and TotalVolume are zero
// and every price-derived metric is null so dashboards do not average a
// fabricated zero.
type MetricSummary struct {
	Ticker      string      `json:"ticker" validate:"required"`
	TradingDays int         `json:"trading_days" validate:"min=0"`
	FirstDate   null.String `json:"first_date"`
	LastDate    null.String `json:"last_date"`

	// ClosingPrice is the close of the most recent retained date
	ClosingPrice null.Float `json:"closing_price"`

	// TotalVolume is the sum of volume over exactly the retained bars
	TotalVolume int64 `json:"total_volume" validate:"min=0"`

	// AvgDailyVariation is the arithmetic mean of CleanedBar.Variation
	AvgDailyVariation null.Float `json:"avg_daily_variation"`

	// VariationStdDev is the population standard deviation of the daily
	// variation, used as the volatility metric.
	VariationStdDev null.Float `json:"variation_std_dev"`

	// PeriodChangePct is (last close / first close - 1) * 100
	PeriodChangePct null.Float `json:"period_change_pct"`
}

// Empty reports whether the summary was built from zero retained bars
func (s MetricSummary) Empty() bool {
	return s.TradingDays == 0
}

// EmptySummary returns the null-metric summary for a ticker without data
func EmptySummary(ticker string) MetricSummary {
	return MetricSummary{Ticker: ticker}
}

// ValidateGold checks the cardinality invariant of a Gold table: exactly one
// row per configured ticker, in configured order.
func ValidateGold(tickers []string, gold []MetricSummary) error {
	if len(gold) != len(tickers) {
		return fmt.Errorf("gold table has %d rows, want %d", len(gold), len(tickers))
	}
	for i, t := range tickers {
		if gold[i].Ticker != t {
			return fmt.Errorf("gold row %d is %q, want %q", i, gold[i].Ticker, t)
		}
	}
	return nil
}
