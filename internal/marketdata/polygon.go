package marketdata

import (
	"context"
	"encoding/json"
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

// DefaultPolygonBaseURL is the aggregates API host
const DefaultPolygonBaseURL = "https://api.polygon.io"

// polygonMaxLimit is the largest page the aggregates endpoint serves
const polygonMaxLimit = 50000

// PolygonProvider reads daily aggregates from the Polygon REST API
type PolygonProvider struct {
	baseURL   string
	apiKey    string
	adjusted  bool
	userAgent string
	client    *http.Client
}

// NewPolygonProvider creates a Polygon provider. adjusted selects split
// adjusted aggregates.
func NewPolygonProvider(baseURL, apiKey, userAgent string, adjusted bool, timeout time.Duration) *PolygonProvider {
	if baseURL == "" {
		baseURL = DefaultPolygonBaseURL
	}
	return &PolygonProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		adjusted:  adjusted,
		userAgent: userAgent,
		client:    newHTTPClient(timeout),
	}
}

// Name implements Provider
func (p *PolygonProvider) Name() string { return "polygon" }

// polygonBar is one aggregate; volume may arrive as float or string
type polygonBar struct {
	Timestamp int64         `json:"t"` // Unix milliseconds
	Open      float64       `json:"o"`
	High      float64       `json:"h"`
	Low       float64       `json:"l"`
	Close     float64       `json:"c"`
	Volume    FlexibleInt64 `json:"v"`
}

type polygonAggregatesResponse struct {
	Ticker       string       `json:"ticker"`
	ResultsCount int          `json:"resultsCount"`
	Adjusted     bool         `json:"adjusted"`
	Results      []polygonBar `json:"results"`
	Status       string       `json:"status"`
	Error        string       `json:"error"`
	NextURL      string       `json:"next_url"`
}

// FetchDaily implements Provider
func (p *PolygonProvider) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	q := url.Values{}
	q.Set("adjusted", strconv.FormatBool(p.adjusted))
	q.Set("sort", "asc")
	q.Set("limit", strconv.Itoa(polygonMaxLimit))
	q.Set("apiKey", p.apiKey)
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?%s",
		p.baseURL, url.PathEscape(ticker), from.Format(domain.DateFormat), to.Format(domain.DateFormat), q.Encode())

	loc := newYork()
	var bars []domain.RawBar
	for endpoint != "" {
		var resp polygonAggregatesResponse
		if err := getJSON(ctx, p.client, endpoint, p.userAgent, &resp); err != nil {
			return nil, err
		}

		switch resp.Status {
		case "OK", "DELAYED":
		default:
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("polygon status %q: %s", resp.Status, resp.Error), nil)
		}

		for _, r := range resp.Results {
			bars = append(bars, domain.RawBar{
				Ticker: ticker,
				Date:   domain.TruncateDate(time.UnixMilli(r.Timestamp), loc),
				Open:   null.FloatFrom(r.Open),
				High:   null.FloatFrom(r.High),
				Low:    null.FloatFrom(r.Low),
				Close:  null.FloatFrom(r.Close),
				Volume: null.IntFrom(r.Volume.Int64()),
			})
		}

		endpoint = ""
		if resp.NextURL != "" {
			next, err := url.Parse(resp.NextURL)
			if err != nil {
				return nil, apperrors.NewParsingError("invalid next_url", err)
			}
			nq := next.Query()
			nq.Set("apiKey", p.apiKey)
			next.RawQuery = nq.Encode()
			endpoint = next.String()
		}
	}

	if bars == nil {
		bars = []domain.RawBar{}
	}
	return bars, nil
}

// FlexibleInt64 parses int, float (scientific notation) or string to int64
type FlexibleInt64 int64

// UnmarshalJSON parses int, float or string
func (f *FlexibleInt64) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexibleInt64(int64(val))
		return nil
	}

	var floatVal float64
	if err := json.Unmarshal(data, &floatVal); err == nil {
		*f = FlexibleInt64(int64(floatVal))
		return nil
	}

	return fmt.Errorf("cannot parse as int64: %s", string(data))
}

// Int64 returns int64 value
func (f FlexibleInt64) Int64() int64 {
	return int64(f)
}
