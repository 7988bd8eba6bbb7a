package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/smacross/internal/collector"
	"github.com/newthinker/smacross/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; smacross/1.0)"
)

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK, ^GSPC
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo loads daily closes from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// Option configures a Yahoo source
type Option func(*Yahoo)

// WithBaseURL points the source at a different chart endpoint
func WithBaseURL(url string) Option {
	return func(y *Yahoo) { y.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(y *Yahoo) { y.client = c }
}

// New creates a new Yahoo source
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchSeries fetches daily closes. A zero end means today; a zero start
// requests the full history.
func (y *Yahoo) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error) {
	if err := validateSymbol(symbol); err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrSymbolNotFound, err)
	}
	if end.IsZero() {
		end = time.Now()
	}

	// period2 is exclusive on Yahoo's side
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, y.toYahooSymbol(symbol), start.Unix(), end.AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return core.PriceSeries{}, core.Errorf(core.ErrSymbolNotFound, "yahoo: %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrNoData, "no data for symbol: %s", symbol)
	}

	r := result.Chart.Result[0]
	points, err := toPoints(r.Timestamp, r.Indicators.Quote[0].Close, exchangeLocation(r.Meta.ExchangeTimezoneName))
	if err != nil {
		return core.PriceSeries{}, err
	}

	series, err := core.NewPriceSeries(symbol, points)
	if err != nil {
		return core.PriceSeries{}, err
	}
	return series.Between(start, end), nil
}

// toPoints pairs timestamps with closes, skipping null bars. Bars landing on
// the same exchange date collapse into the later one.
func toPoints(timestamps []int64, closes []*float64, loc *time.Location) ([]core.PricePoint, error) {
	if len(closes) != len(timestamps) {
		return nil, core.Errorf(core.ErrCollectorFailed, "yahoo: %d timestamps but %d closes", len(timestamps), len(closes))
	}

	points := make([]core.PricePoint, 0, len(timestamps))
	for i, ts := range timestamps {
		if closes[i] == nil {
			continue // Skip missing data
		}
		p := core.PricePoint{
			Date:  collector.NormalizeDate(time.Unix(ts, 0).In(loc)),
			Close: *closes[i],
		}
		if n := len(points); n > 0 && points[n-1].Date.Equal(p.Date) {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func exchangeLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}
