package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/smacross/internal/collector"
	"github.com/newthinker/smacross/internal/core"
)

func TestYahoo_ImplementsSource(t *testing.T) {
	var _ collector.Source = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New()
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	y := New()
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"AAPL", "BRK-B", "600519.SH", "^GSPC"} {
		assert.NoError(t, validateSymbol(ok), ok)
	}
	for _, bad := range []string{"", "AAPL/../x", "A B", strings.Repeat("A", 21)} {
		assert.Error(t, validateSymbol(bad), bad)
	}
}

// 2024-01-02 and 2024-01-03 14:30 UTC, then a null bar, then a second
// timestamp on 2024-01-03
const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "exchangeTimezoneName": "UTC"},
      "timestamp": [1704205800, 1704292200, 1704378600, 1704300000],
      "indicators": {"quote": [{"close": [185.64, 184.25, null, 184.5]}]}
    }],
    "error": null
  }
}`

func TestYahoo_FetchSeries(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	y := New(WithBaseURL(srv.URL))
	s, err := y.FetchSeries(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/AAPL", gotPath)
	assert.Contains(t, gotQuery, "interval=1d")
	assert.NotEmpty(t, gotUA)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.At(0).Date)
	assert.Equal(t, 185.64, s.At(0).Close)
	// later bar on the same date wins
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), s.At(1).Date)
	assert.Equal(t, 184.5, s.At(1).Close)
}

func TestYahoo_FetchSeries_ShanghaiSymbol(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).FetchSeries(context.Background(), "600519.SH", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "/600519.SS", gotPath)
}

func TestYahoo_FetchSeries_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{}`, core.ErrSymbolNotFound},
		{"server error", http.StatusInternalServerError, `{}`, core.ErrCollectorFailed},
		{"bad json", http.StatusOK, `{"chart":`, core.ErrCollectorFailed},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, core.ErrCollectorFailed},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, core.ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(WithBaseURL(srv.URL)).FetchSeries(context.Background(), "AAPL", time.Time{}, time.Time{})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestYahoo_FetchSeries_InvalidSymbol(t *testing.T) {
	_, err := New().FetchSeries(context.Background(), "bad symbol!", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}

func TestYahoo_FetchSeries_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithBaseURL(srv.URL)).FetchSeries(ctx, "AAPL", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, context.Canceled))
}
