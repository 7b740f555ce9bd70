package fetch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	// Closes maps ticker to its close series; tickers not present
	// report not-found.
	Closes map[string][]float64
	// Errs maps ticker to a forced error kind.
	Errs map[string]ErrorKind

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many fetches were issued.
func (m *MockFetcher) Calls() int64 { return m.calls.Load() }

func (m *MockFetcher) FetchDailyCloses(_ context.Context, ticker string) (*model.PriceSeries, error) {
	m.calls.Add(1)
	if kind, ok := m.Errs[ticker]; ok {
		return nil, &FetchError{Kind: kind, Ticker: ticker}
	}
	closes, ok := m.Closes[ticker]
	if !ok {
		return nil, &FetchError{Kind: KindNotFound, Ticker: ticker}
	}
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	bars := make([]model.ClosingBar, len(closes))
	for i, c := range closes {
		bars[i] = model.ClosingBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return &model.PriceSeries{Ticker: ticker, Bars: bars, FetchedAt: time.Now().UTC()}, nil
}
