package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

const nseCSV = `SYMBOL,NAME OF COMPANY,SERIES,DATE OF LISTING
RELIANCE,Reliance Industries Limited,EQ,08-JAN-1995
TCS,Tata Consultancy Services Limited,EQ,25-AUG-2004
SGBAUG28,Sovereign Gold Bond,GB,14-AUG-2020
SMALLCO,Small Company Limited,SM,01-JAN-2022
`

const bseJSON = `{"Table":[
	{"short_name":"RELIANCE","LONGNAME":"Reliance Industries Ltd","extra_field":1},
	{"short_name":"INFY","LONGNAME":"Infosys Ltd"},
	{"short_name":"","LONGNAME":"Nameless"}
]}`

func newTestDirectory(t *testing.T, nseHandler, bseHandler http.HandlerFunc) (*Directory, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	count := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			h(w, r)
		}
	}
	nseSrv := httptest.NewServer(count(nseHandler))
	bseSrv := httptest.NewServer(count(bseHandler))
	t.Cleanup(nseSrv.Close)
	t.Cleanup(bseSrv.Close)

	cachePath := filepath.Join(t.TempDir(), "all_symbols.json")
	d := New(
		[]Source{NewNSESource(nseSrv.URL), NewBSESource(bseSrv.URL)},
		cachePath,
		7*24*time.Hour,
		zap.NewNop(),
	)
	return d, &hits
}

func serveNSE(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, nseCSV) }
func serveBSE(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, bseJSON) }
func serveFail(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
}

func TestUniverse_FetchNormalizeFilter(t *testing.T) {
	d, _ := newTestDirectory(t, serveNSE, serveBSE)

	u, err := d.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, model.UniverseSchemaVersion, u.SchemaVersion)
	assert.Empty(t, u.SourceErrors)

	byKey := map[string]model.Symbol{}
	for _, s := range u.Symbols {
		byKey[s.Key()] = s
	}
	// NSE equity series kept, non-equity series dropped.
	assert.Contains(t, byKey, "NSE:RELIANCE.NS")
	assert.Contains(t, byKey, "NSE:TCS.NS")
	assert.Contains(t, byKey, "NSE:SMALLCO.NS")
	assert.NotContains(t, byKey, "NSE:SGBAUG28.NS")
	// BSE rows kept, blank scrips dropped.
	assert.Contains(t, byKey, "BSE:RELIANCE.BO")
	assert.Contains(t, byKey, "BSE:INFY.BO")
	assert.Len(t, u.Symbols, 5)

	assert.Equal(t, "Reliance Industries Limited", byKey["NSE:RELIANCE.NS"].Name)
	assert.Equal(t, "EQ", byKey["NSE:RELIANCE.NS"].Series)
}

func TestUniverse_SecondCallHitsCache(t *testing.T) {
	d, hits := newTestDirectory(t, serveNSE, serveBSE)

	u1, err := d.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())

	u2, err := d.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "cache hit must make no network calls")
	assert.Equal(t, u1.GeneratedAt, u2.GeneratedAt)
}

func TestUniverse_ForceRefreshBypassesCache(t *testing.T) {
	d, hits := newTestDirectory(t, serveNSE, serveBSE)

	_, err := d.Universe(context.Background(), false)
	require.NoError(t, err)

	_, err = d.Universe(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(4), hits.Load())
}

func TestUniverse_CacheSurvivesRestart(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "all_symbols.json")
	srv := httptest.NewServer(http.HandlerFunc(serveNSE))
	t.Cleanup(srv.Close)

	d1 := New([]Source{NewNSESource(srv.URL)}, cachePath, 7*24*time.Hour, zap.NewNop())
	u1, err := d1.Universe(context.Background(), false)
	require.NoError(t, err)

	// A fresh Directory over the same cache file reads it without fetching.
	d2 := New([]Source{NewNSESource("http://127.0.0.1:0")}, cachePath, 7*24*time.Hour, zap.NewNop())
	u2, err := d2.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, len(u1.Symbols), len(u2.Symbols))
}

func TestUniverse_PartialSourceFailure(t *testing.T) {
	d, _ := newTestDirectory(t, serveNSE, serveFail)

	u, err := d.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, u.SourceErrors, 1)
	assert.Contains(t, u.SourceErrors[0], "bse")
	assert.Len(t, u.Symbols, 3)
}

func TestUniverse_AllSourcesFailNoCache(t *testing.T) {
	d, _ := newTestDirectory(t, serveFail, serveFail)

	_, err := d.Universe(context.Background(), false)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestUniverse_AllSourcesFailFallsBackToCache(t *testing.T) {
	var failing atomic.Bool
	flaky := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				serveFail(w, r)
				return
			}
			h(w, r)
		}
	}
	d, _ := newTestDirectory(t, flaky(serveNSE), flaky(serveBSE))

	u1, err := d.Universe(context.Background(), false)
	require.NoError(t, err)

	failing.Store(true)
	u2, err := d.Universe(context.Background(), true)
	require.NoError(t, err, "stale cache must serve when all sources fail")
	assert.Equal(t, u1.GeneratedAt, u2.GeneratedAt)
}

func TestCachedCount(t *testing.T) {
	d, _ := newTestDirectory(t, serveNSE, serveBSE)
	assert.Zero(t, d.CachedCount())

	_, err := d.Universe(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 5, d.CachedCount())
}
