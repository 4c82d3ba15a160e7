package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTickers is the statically configured symbol set
var DefaultTickers = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA",
	"META", "NVDA", "BRK-B", "JPM", "JNJ",
}

// tickerPattern accepts exchange symbols such as BRK-B or RDS.A
var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}([.-][A-Z0-9]{1,4})?$`)

// NormalizeTickers upper-cases, trims and validates a ticker list. Order is
// preserved; duplicates are rejected because the Gold table must hold one
// row per ticker.
func NormalizeTickers(tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("ticker list is empty")
	}

	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		sym := strings.ToUpper(strings.TrimSpace(t))
		if !tickerPattern.MatchString(sym) {
			return nil, fmt.Errorf("invalid ticker %q", t)
		}
		if seen[sym] {
			return nil, fmt.Errorf("duplicate ticker %q", sym)
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}
