// Package marketdata fetches daily bars from public market-data APIs and
// assembles the Bronze layer of a run.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "marketpulse/internal/errors"
	"marketpulse/pkg/contracts/domain"
)

// Provider fetches the daily bars of one ticker for an inclusive date range.
// A ticker the provider does not know yields ErrTickerNotFound.
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error)
}

var (
	// ErrTickerNotFound marks a symbol the provider cannot resolve
	ErrTickerNotFound = errors.New("ticker not found")

	// ErrProviderUnavailable aborts a run in which no ticker could be
	// fetched and at least one attempt failed to reach the provider.
	ErrProviderUnavailable = errors.New("market data provider unavailable")
)

// maxBodyBytes caps a single provider response
const maxBodyBytes = 32 << 20

// newHTTPClient creates the client shared by the providers
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
		},
		Timeout: timeout,
	}
}

// getJSON performs a GET and decodes a JSON body into out. Failures are
// classified so the extractor can tell fatal from per-ticker errors.
func getJSON(ctx context.Context, client *http.Client, rawURL, userAgent string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewAuthError(fmt.Sprintf("provider rejected credentials (HTTP %d)", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (HTTP 404)", ErrTickerNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperrors.NewNetworkError(fmt.Sprintf("provider returned HTTP %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	default:
		return apperrors.NewParsingError(fmt.Sprintf("unexpected HTTP %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewParsingError("decode response", err)
	}
	return nil
}
