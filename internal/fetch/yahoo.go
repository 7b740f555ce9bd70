package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

const defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooFetcher implements Fetcher against the Yahoo Finance chart API.
// One instance is shared by all scan workers; its rate limiter paces
// request issuance globally, independent of worker-pool size.
type YahooFetcher struct {
	baseURL string
	rng     string
	client  *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *zap.Logger
}

// YahooOption configures the fetcher.
type YahooOption func(*YahooFetcher)

// WithBaseURL overrides the chart API base URL (tests).
func WithBaseURL(baseURL string) YahooOption {
	return func(f *YahooFetcher) { f.baseURL = baseURL }
}

// WithRange sets the history window (e.g. "5y").
func WithRange(rng string) YahooOption {
	return func(f *YahooFetcher) { f.rng = rng }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) YahooOption {
	return func(f *YahooFetcher) { f.client.Timeout = timeout }
}

// WithRateLimit sets the global request pacing.
func WithRateLimit(perSecond float64, burst int) YahooOption {
	return func(f *YahooFetcher) { f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetryPolicy sets the retry policy applied to every fetch.
func WithRetryPolicy(p RetryPolicy) YahooOption {
	return func(f *YahooFetcher) { f.retry = p }
}

// WithProxy routes requests through an HTTP proxy.
func WithProxy(proxyURL string) YahooOption {
	return func(f *YahooFetcher) {
		if u, err := url.Parse(proxyURL); err == nil && proxyURL != "" {
			f.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// NewYahooFetcher creates a fetcher with sane defaults.
func NewYahooFetcher(logger *zap.Logger, opts ...YahooOption) *YahooFetcher {
	f := &YahooFetcher{
		baseURL: defaultChartBaseURL,
		rng:     "5y",
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(8), 8),
		retry:   DefaultRetryPolicy(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
// Unknown fields are ignored.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyCloses retrieves the daily close series for the configured
// range, retrying transient failures under the fetcher's policy.
func (f *YahooFetcher) FetchDailyCloses(ctx context.Context, ticker string) (*model.PriceSeries, error) {
	var series *model.PriceSeries
	err := f.retry.Do(ctx, func() error {
		s, err := f.fetchOnce(ctx, ticker)
		if err != nil {
			return err
		}
		series = s
		return nil
	})
	if err != nil {
		f.logger.Debug("history fetch failed",
			zap.String("ticker", ticker),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	return series, nil
}

func (f *YahooFetcher) fetchOnce(ctx context.Context, ticker string) (*model.PriceSeries, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: KindTimeout, Ticker: ticker, Err: err}
	}

	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", f.baseURL, url.PathEscape(ticker), f.rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformedResponse, Ticker: ticker, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection resets and refusals are grouped with timeouts:
		// transient, retryable, not the symbol's fault.
		return nil, &FetchError{Kind: KindTimeout, Ticker: ticker, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformedResponse, Ticker: ticker, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &FetchError{Kind: KindNotFound, Ticker: ticker}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &FetchError{Kind: KindRateLimited, Ticker: ticker,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: KindMalformedResponse, Ticker: ticker,
			Err: fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))}
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &FetchError{Kind: KindMalformedResponse, Ticker: ticker, Err: err}
	}
	if chart.Chart.Error != nil {
		return nil, &FetchError{Kind: KindNotFound, Ticker: ticker,
			Err: fmt.Errorf("api error: %s", chart.Chart.Error.Description)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &FetchError{Kind: KindNotFound, Ticker: ticker}
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	bars := make([]model.ClosingBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue // null bars (holidays, suspensions)
		}
		bars = append(bars, model.ClosingBar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	bars = dedupDates(bars)

	return &model.PriceSeries{Ticker: ticker, Bars: bars, FetchedAt: time.Now().UTC()}, nil
}

// dedupDates keeps the last close seen for a calendar date; the series
// must be strictly increasing by date.
func dedupDates(bars []model.ClosingBar) []model.ClosingBar {
	out := bars[:0]
	for _, b := range bars {
		day := b.Date.Truncate(24 * time.Hour)
		if len(out) > 0 && out[len(out)-1].Date.Equal(day) {
			out[len(out)-1].Close = b.Close
			continue
		}
		b.Date = day
		out = append(out, b)
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
