package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"

	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

// Result holds the Silver and Gold layers of one run
type Result struct {
	// Silver is every retained bar, grouped by ticker in configured order
	// and sorted by date within a ticker.
	Silver []domain.CleanedBar

	// Gold has exactly one row per configured ticker
	Gold []domain.MetricSummary
}

// Transformer runs the Silver and Gold steps over a Bronze snapshot
type Transformer struct {
	cleaner    *Cleaner
	summarizer *Summarizer
	logger     *slog.Logger
}

// NewTransformer wires a cleaner and a summarizer
func NewTransformer(opts CleanOptions, reporter reporting.Reporter, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		cleaner:    NewCleaner(opts, reporter, logger),
		summarizer: NewSummarizer(logger),
		logger:     logger,
	}
}

// Transform cleans each ticker's series and aggregates the result. Tickers
// missing from series are treated as having no bars.
func (t *Transformer) Transform(ctx context.Context, tickers []string, series map[string][]domain.RawBar) (*Result, error) {
	bySymbol := make(map[string][]domain.CleanedBar, len(tickers))
	var silver []domain.CleanedBar
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars := t.cleaner.Clean(ctx, ticker, series[ticker])
		bySymbol[ticker] = bars
		silver = append(silver, bars...)
	}

	gold := t.summarizer.BuildGold(ctx, tickers, bySymbol)
	if err := domain.ValidateGold(tickers, gold); err != nil {
		return nil, fmt.Errorf("gold invariant: %w", err)
	}

	t.logger.InfoContext(ctx, "transform completed",
		slog.Int("silver_rows", len(silver)),
		slog.Int("gold_rows", len(gold)))

	return &Result{Silver: silver, Gold: gold}, nil
}
