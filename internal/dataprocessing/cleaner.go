package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

// Reasons a raw bar is excluded from the Silver table
const (
	DropMissingPrice     = "missing_price"
	DropNonFinitePrice   = "non_finite_price"
	DropNonPositivePrice = "non_positive_price"
	DropMissingVolume    = "missing_volume"
	DropNonPositiveVol   = "non_positive_volume"
	DropHighBelowLow     = "high_below_low"
	DropDuplicateDate    = "duplicate_date"
)

// Drop records one excluded raw bar
type Drop struct {
	Ticker string
	Date   time.Time
	Reason string
}

// CleanOptions controls the Silver transform
type CleanOptions struct {
	// AdjustPrices rescales open, high and low by AdjClose/Close
	AdjustPrices bool
}

// CleanSeries validates the raw bars of one ticker and derives the Silver
// rows. It is a pure function of its input.
func CleanSeries(raws []domain.RawBar, opts CleanOptions) ([]domain.CleanedBar, []Drop) {
	var drops []Drop
	byDate := make(map[time.Time]int, len(raws))
	kept := make([]domain.CleanedBar, 0, len(raws))

	for _, raw := range raws {
		bar, reason := cleanBar(raw, opts)
		if reason != "" {
			drops = append(drops, Drop{Ticker: raw.Ticker, Date: raw.Date, Reason: reason})
			continue
		}

		if idx, dup := byDate[bar.Date]; dup {
			drops = append(drops, Drop{Ticker: raw.Ticker, Date: raw.Date, Reason: DropDuplicateDate})
			kept[idx] = bar
			continue
		}
		byDate[bar.Date] = len(kept)
		kept = append(kept, bar)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })

	for i := range kept {
		kept[i].Variation = (kept[i].Close - kept[i].Open) / kept[i].Open
		if i > 0 {
			kept[i].ChangePct = (kept[i].Close/kept[i-1].Close - 1) * 100
		} else {
			kept[i].ChangePct = 0
		}
	}

	return kept, drops
}

func cleanBar(raw domain.RawBar, opts CleanOptions) (domain.CleanedBar, string) {
	prices := [4]float64{}
	for i, p := range []struct {
		valid bool
		value float64
	}{
		{raw.Open.Valid, raw.Open.Float64},
		{raw.High.Valid, raw.High.Float64},
		{raw.Low.Valid, raw.Low.Float64},
		{raw.Close.Valid, raw.Close.Float64},
	} {
		switch {
		case !p.valid:
			return domain.CleanedBar{}, DropMissingPrice
		case math.IsNaN(p.value) || math.IsInf(p.value, 0):
			return domain.CleanedBar{}, DropNonFinitePrice
		case p.value <= 0:
			return domain.CleanedBar{}, DropNonPositivePrice
		}
		prices[i] = p.value
	}
	open, high, low, close := prices[0], prices[1], prices[2], prices[3]

	if !raw.Volume.Valid {
		return domain.CleanedBar{}, DropMissingVolume
	}
	if raw.Volume.Int64 <= 0 {
		return domain.CleanedBar{}, DropNonPositiveVol
	}
	if high < low {
		return domain.CleanedBar{}, DropHighBelowLow
	}

	if opts.AdjustPrices && raw.AdjClose.Valid {
		adj := raw.AdjClose.Float64
		if adj > 0 && !math.IsInf(adj, 0) && !math.IsNaN(adj) {
			ratio := adj / close
			open *= ratio
			high *= ratio
			low *= ratio
			close = adj
		}
	}

	return domain.CleanedBar{
		Ticker: raw.Ticker,
		Date:   raw.Date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: raw.Volume.Int64,
	}, ""
}

// Cleaner runs CleanSeries and reports every dropped row
type Cleaner struct {
	opts     CleanOptions
	reporter reporting.Reporter
	logger   *slog.Logger
}

// NewCleaner creates a cleaner. A nil reporter discards events.
func NewCleaner(opts CleanOptions, reporter reporting.Reporter, logger *slog.Logger) *Cleaner {
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{opts: opts, reporter: reporter, logger: logger}
}

// Clean cleans one ticker's series
func (c *Cleaner) Clean(ctx context.Context, ticker string, raws []domain.RawBar) []domain.CleanedBar {
	bars, drops := CleanSeries(raws, c.opts)
	for _, d := range drops {
		event := reporting.EventRowDropped
		if d.Reason == DropDuplicateDate {
			event = reporting.EventDuplicateDate
		}
		c.reporter.Record(ctx, event,
			slog.String("ticker", ticker),
			slog.String("date", d.Date.Format(domain.DateFormat)),
			slog.String("reason", d.Reason))
	}
	if len(drops) > 0 {
		c.logger.DebugContext(ctx, "rows excluded from silver",
			slog.String("ticker", ticker),
			slog.Int("raw_rows", len(raws)),
			slog.Int("dropped", len(drops)))
	}
	return bars
}
