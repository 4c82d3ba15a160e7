package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	apperrors "marketpulse/internal/errors"
	"marketpulse/pkg/contracts/domain"
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider reads daily bars from the Yahoo Finance chart API
type YahooProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewYahooProvider creates a Yahoo provider. An empty baseURL uses the
// public endpoint.
func NewYahooProvider(baseURL, userAgent string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    newHTTPClient(timeout),
	}
}

// Name implements Provider
func (p *YahooProvider) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily implements Provider
func (p *YahooProvider) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	// period2 is exclusive
	q.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div,split")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(ticker), q.Encode())

	var resp yahooChartResponse
	if err := getJSON(ctx, p.client, endpoint, p.userAgent, &resp); err != nil {
		return nil, err
	}

	if resp.Chart.Error != nil {
		if strings.EqualFold(resp.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, resp.Chart.Error.Description)
		}
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description), nil)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrTickerNotFound)
	}

	return parseYahooResult(ticker, resp)
}

func parseYahooResult(ticker string, resp yahooChartResponse) ([]domain.RawBar, error) {
	result := resp.Chart.Result[0]
	n := len(result.Timestamp)
	if n == 0 {
		return []domain.RawBar{}, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("no quote data for %s", ticker), nil)
	}

	quote := result.Indicators.Quote[0]
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n ||
		len(quote.Close) != n || len(quote.Volume) != n {
		return nil, apperrors.NewParsingError(fmt.Sprintf("data alignment error for %s", ticker), nil)
	}

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == n {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	loc := exchangeLocation(result.Meta.ExchangeTimezoneName)
	bars := make([]domain.RawBar, 0, n)
	for i, ts := range result.Timestamp {
		bar := domain.RawBar{
			Ticker: ticker,
			Date:   domain.TruncateDate(time.Unix(ts, 0), loc),
			Open:   null.FloatFromPtr(quote.Open[i]),
			High:   null.FloatFromPtr(quote.High[i]),
			Low:    null.FloatFromPtr(quote.Low[i]),
			Close:  null.FloatFromPtr(quote.Close[i]),
			Volume: volumeFromPtr(quote.Volume[i]),
		}
		if adj != nil {
			bar.AdjClose = null.FloatFromPtr(adj[i])
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func volumeFromPtr(v *float64) null.Int {
	if v == nil {
		return null.Int{}
	}
	return null.IntFrom(int64(*v))
}

// exchangeLocation resolves an IANA zone name, defaulting to New York
func exchangeLocation(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return newYork()
}

func newYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// isNotFound reports whether err marks an unknown ticker
func isNotFound(err error) bool {
	return errors.Is(err, ErrTickerNotFound)
}
