package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketpulse/internal/errors"
)

func TestPolygonProvider_FetchDaily(t *testing.T) {
	var srv *httptest.Server
	calls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))

		switch calls {
		case 1:
			assert.Equal(t, "/v2/aggs/ticker/MSFT/range/1/day/2024-01-02/2024-01-03", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("adjusted"))
			// 2024-01-02 05:00 UTC is midnight in New York
			fmt.Fprintf(w, `{"status":"OK","ticker":"MSFT","results":[{"t":1704171600000,"o":90,"h":101,"l":89,"c":100,"v":1.0e3}],"next_url":"%s/v2/aggs/page2?cursor=abc"}`, srv.URL)
		default:
			assert.Equal(t, "/v2/aggs/page2", r.URL.Path)
			assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
			fmt.Fprint(w, `{"status":"DELAYED","results":[{"t":1704258000000,"o":100,"h":111,"l":99,"c":110,"v":"500"}]}`)
		}
	}))
	defer srv.Close()

	p := NewPolygonProvider(srv.URL, "secret", "", true, 5*time.Second)
	bars, err := p.FetchDaily(context.Background(), "MSFT", date(2024, 1, 2), date(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, calls)

	assert.Equal(t, date(2024, 1, 2), bars[0].Date)
	assert.Equal(t, int64(1000), bars[0].Volume.Int64)
	assert.False(t, bars[0].AdjClose.Valid)
	assert.Equal(t, date(2024, 1, 3), bars[1].Date)
	assert.Equal(t, int64(500), bars[1].Volume.Int64)
}

func TestPolygonProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, bars int, err error)
	}{
		{
			name:   "no results is empty series",
			status: http.StatusOK,
			body:   `{"status":"OK","resultsCount":0}`,
			check: func(t *testing.T, bars int, err error) {
				require.NoError(t, err)
				assert.Equal(t, 0, bars)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `{"status":"NOT_AUTHORIZED"}`,
			check: func(t *testing.T, _ int, err error) {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{}`,
			check: func(t *testing.T, _ int, err error) {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
			},
		},
		{
			name:   "error status",
			status: http.StatusOK,
			body:   `{"status":"ERROR","error":"bad ticker format"}`,
			check: func(t *testing.T, _ int, err error) {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
				assert.Contains(t, err.Error(), "bad ticker format")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p := NewPolygonProvider(srv.URL, "k", "", true, 5*time.Second)
			bars, err := p.FetchDaily(context.Background(), "JPM", date(2024, 1, 2), date(2024, 1, 3))
			tt.check(t, len(bars), err)
		})
	}
}

func TestFlexibleInt64(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{`123`, 123, true},
		{`1.5e6`, 1500000, true},
		{`"42"`, 42, true},
		{`"abc"`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexibleInt64
			err := json.Unmarshal([]byte(tt.in), &f)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Int64())
		})
	}
}
