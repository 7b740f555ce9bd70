// Package directory builds and caches the universe of tradable symbols
// from the configured exchange symbol-list sources.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// ErrSourceUnavailable means every configured symbol source failed and no
// cached universe exists to fall back on. A scan cannot run with zero symbols.
var ErrSourceUnavailable = errors.New("no symbol source available")

// Directory owns the symbol universe: it refreshes it from the exchange
// sources, caches it on disk, and hands out read-only references to scans.
type Directory struct {
	sources   []Source
	cachePath string
	staleness time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	cached *model.SymbolUniverse
}

// New creates a Directory over the given sources.
func New(sources []Source, cachePath string, staleness time.Duration, logger *zap.Logger) *Directory {
	return &Directory{
		sources:   sources,
		cachePath: cachePath,
		staleness: staleness,
		logger:    logger,
	}
}

// Universe returns the symbol universe for a scan cycle. A cached universe
// younger than the staleness threshold is reused without any network call
// unless forceRefresh is set. When every source fails, the last good cache
// of any age is used; with no cache the failure propagates.
func (d *Directory) Universe(ctx context.Context, forceRefresh bool) (*model.SymbolUniverse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached == nil {
		if u, err := d.loadCache(); err == nil {
			d.cached = u
		} else if !os.IsNotExist(err) {
			d.logger.Warn("symbol cache unreadable, will refresh", zap.Error(err))
		}
	}

	if !forceRefresh && d.cached != nil && len(d.cached.Symbols) > 0 &&
		d.cached.Age(time.Now()) < d.staleness {
		d.logger.Info("using cached symbol universe",
			zap.Int("symbols", len(d.cached.Symbols)),
			zap.Time("generated_at", d.cached.GeneratedAt))
		return d.cached, nil
	}

	universe, err := d.refresh(ctx)
	if err != nil {
		if d.cached != nil && len(d.cached.Symbols) > 0 {
			d.logger.Warn("all symbol sources failed, falling back to stale cache",
				zap.Error(err),
				zap.Time("generated_at", d.cached.GeneratedAt))
			return d.cached, nil
		}
		return nil, err
	}

	if err := d.saveCache(universe); err != nil {
		// The fresh universe is still usable this run; only the cache write failed.
		d.logger.Error("persist symbol cache failed", zap.Error(err))
	}
	d.cached = universe
	return universe, nil
}

// CachedCount reports how many symbols the current cache holds without
// triggering a refresh.
func (d *Directory) CachedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		if u, err := d.loadCache(); err == nil {
			d.cached = u
		}
	}
	if d.cached == nil {
		return 0
	}
	return len(d.cached.Symbols)
}

// refresh queries every source, normalizes and deduplicates the results
// into a new universe. At least one source must succeed.
func (d *Directory) refresh(ctx context.Context) (*model.SymbolUniverse, error) {
	var (
		symbols    []model.Symbol
		sourceErrs []string
		succeeded  int
	)
	seen := make(map[string]bool)

	for _, src := range d.sources {
		fetched, err := src.FetchSymbols(ctx)
		if err != nil {
			d.logger.Error("symbol source failed",
				zap.String("source", src.Name()), zap.Error(err))
			sourceErrs = append(sourceErrs, fmt.Sprintf("%s: %v", src.Name(), err))
			continue
		}
		succeeded++
		kept := 0
		for _, sym := range fetched {
			if sym.Exchange == model.ExchangeNSE && !equitySeries[sym.Series] {
				continue
			}
			if seen[sym.Key()] {
				continue
			}
			seen[sym.Key()] = true
			symbols = append(symbols, sym)
			kept++
		}
		d.logger.Info("symbol source fetched",
			zap.String("source", src.Name()),
			zap.Int("fetched", len(fetched)),
			zap.Int("kept", kept))
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, sourceErrs)
	}

	return &model.SymbolUniverse{
		SchemaVersion: model.UniverseSchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Symbols:       symbols,
		SourceErrors:  sourceErrs,
	}, nil
}

func (d *Directory) loadCache() (*model.SymbolUniverse, error) {
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return nil, err
	}
	var u model.SymbolUniverse
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse symbol cache: %w", err)
	}
	if u.SchemaVersion != model.UniverseSchemaVersion {
		return nil, fmt.Errorf("symbol cache schema %d, want %d", u.SchemaVersion, model.UniverseSchemaVersion)
	}
	return &u, nil
}

// saveCache replaces the on-disk cache atomically so a concurrent reader
// never observes a half-written file.
func (d *Directory) saveCache(u *model.SymbolUniverse) error {
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	tmp := d.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.cachePath)
}
