package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chartBody(timestamps []int64, closes []string) string {
	ts := ""
	cl := ""
	for i := range timestamps {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprintf("%d", timestamps[i])
		cl += closes[i]
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cl)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahooFetcher(zap.NewNop(),
		WithBaseURL(srv.URL),
		WithRateLimit(1000, 1000),
		WithRetryPolicy(fastPolicy(3)),
	)
}

func TestYahoo_FetchDailyCloses(t *testing.T) {
	day := int64(86400)
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC).Unix()
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "interval=1d")
		assert.Contains(t, r.URL.RawQuery, "range=5y")
		fmt.Fprint(w, chartBody(
			[]int64{base, base + day, base + 2*day},
			[]string{"101.5", "102.25", "100.75"},
		))
	})

	series, err := f.FetchDailyCloses(context.Background(), "RELIANCE.NS")
	require.NoError(t, err)
	require.Len(t, series.Bars, 3)
	assert.Equal(t, 101.5, series.Bars[0].Close)
	assert.Equal(t, 100.75, series.Bars[2].Close)
	assert.True(t, series.Bars[0].Date.Before(series.Bars[1].Date))
	assert.Equal(t, "RELIANCE.NS", series.Ticker)
}

func TestYahoo_NullAndZeroClosesSkipped(t *testing.T) {
	day := int64(86400)
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC).Unix()
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody(
			[]int64{base, base + day, base + 2*day, base + 3*day},
			[]string{"100", "null", "0", "104"},
		))
	})

	series, err := f.FetchDailyCloses(context.Background(), "X.NS")
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 100.0, series.Bars[0].Close)
	assert.Equal(t, 104.0, series.Bars[1].Close)
}

func TestYahoo_NotFoundStatusCodes(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity} {
		var calls atomic.Int64
		f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		})
		_, err := f.FetchDailyCloses(context.Background(), "GONE.NS")
		require.Error(t, err)
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.Equal(t, int64(1), calls.Load(), "not found must not retry")
	}
}

func TestYahoo_EmptyResultIsNotFound(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	})
	_, err := f.FetchDailyCloses(context.Background(), "EMPTY.NS")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestYahoo_APIErrorIsNotFound(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	_, err := f.FetchDailyCloses(context.Background(), "DELISTED.NS")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestYahoo_RateLimitedRetriesThenSucceeds(t *testing.T) {
	day := int64(86400)
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC).Unix()
	var calls atomic.Int64
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chartBody([]int64{base, base + day}, []string{"10", "11"}))
	})

	series, err := f.FetchDailyCloses(context.Background(), "BUSY.NS")
	require.NoError(t, err)
	assert.Len(t, series.Bars, 2)
	assert.Equal(t, int64(3), calls.Load())
}

func TestYahoo_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int64
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `<html>not json</html>`)
	})
	_, err := f.FetchDailyCloses(context.Background(), "WEIRD.NS")
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestYahoo_RequestTimeout(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	WithTimeout(20 * time.Millisecond)(f)
	WithRetryPolicy(fastPolicy(1))(f)

	_, err := f.FetchDailyCloses(context.Background(), "SLOW.NS")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}
