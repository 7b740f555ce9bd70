// Package scan drives the all-time-high scan: it fetches the full symbol
// universe under bounded concurrency, applies the detection rule per
// symbol, and publishes one atomic result snapshot.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/fetch"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// ErrAlreadyRunning rejects a scan trigger while one is in flight.
var ErrAlreadyRunning = errors.New("scan already running")

// UniverseProvider hands out the symbol universe for a scan cycle.
type UniverseProvider interface {
	Universe(ctx context.Context, forceRefresh bool) (*model.SymbolUniverse, error)
}

// Publisher atomically replaces the published scan snapshot.
type Publisher interface {
	Publish(*model.ScanSnapshot) error
}

// Recorder appends a completed scan to the historical record.
type Recorder interface {
	RecordScan(*model.ScanSnapshot) error
}

// Options bounds the scan's concurrency and detection rule.
type Options struct {
	Workers        int
	Threshold      float64
	MinHistoryBars int
	KeepAllRecords bool
	// ProgressEvery controls how often completion progress is logged.
	ProgressEvery int
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 6
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.995
	}
	if o.MinHistoryBars <= 0 {
		o.MinHistoryBars = 20
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 100
	}
}

// Coordinator runs at most one scan at a time over a bounded worker pool.
type Coordinator struct {
	directory UniverseProvider
	fetcher   fetch.Fetcher
	store     Publisher
	recorder  Recorder
	logger    *zap.Logger
	opts      Options

	mu      sync.Mutex
	running bool

	completed atomic.Int64
	total     atomic.Int64
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(directory UniverseProvider, fetcher fetch.Fetcher, store Publisher,
	recorder Recorder, logger *zap.Logger, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		directory: directory,
		fetcher:   fetcher,
		store:     store,
		recorder:  recorder,
		logger:    logger,
		opts:      opts,
	}
}

// Running reports whether a scan is currently in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Progress returns how many symbols have completed out of the current
// scan's total. Zeroes when idle.
func (c *Coordinator) Progress() (completed, total int) {
	return int(c.completed.Load()), int(c.total.Load())
}

// RunScan executes one full scan and publishes the resulting snapshot.
// A second invocation while one is in flight returns ErrAlreadyRunning.
// Per-symbol fetch failures are captured into their ScanRecords and never
// fail the run; only universe acquisition and snapshot publication do.
func (c *Coordinator) RunScan(ctx context.Context) (*model.ScanSnapshot, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	scanID := uuid.NewString()
	startedAt := time.Now().UTC()
	c.logger.Info("scan started", zap.String("scan_id", scanID))

	universe, err := c.directory.Universe(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("acquire symbol universe: %w", err)
	}

	symbols := universe.Symbols
	c.total.Store(int64(len(symbols)))
	c.completed.Store(0)
	defer c.total.Store(0)
	defer c.completed.Store(0)

	c.logger.Info("scanning universe",
		zap.String("scan_id", scanID),
		zap.Int("symbols", len(symbols)),
		zap.Int("workers", c.opts.Workers))

	jobs := make(chan model.Symbol)
	results := make(chan model.ScanRecord)

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				results <- c.scanSymbol(ctx, sym)
			}
		}()
	}

	go func() {
		for _, sym := range symbols {
			jobs <- sym
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	records := make([]model.ScanRecord, 0, len(symbols))
	for rec := range results {
		records = append(records, rec)
		done := c.completed.Add(1)
		if rec.AllTimeHigh {
			c.logger.Info("all-time high",
				zap.String("ticker", rec.Ticker),
				zap.Float64("close", rec.LatestClose),
				zap.Float64("high", rec.HighClose))
		}
		if int(done)%c.opts.ProgressEvery == 0 {
			elapsed := time.Since(startedAt)
			rate := float64(done) / elapsed.Seconds()
			eta := time.Duration(float64(len(symbols)-int(done))/rate) * time.Second
			c.logger.Info("scan progress",
				zap.Int64("completed", done),
				zap.Int("total", len(symbols)),
				zap.Duration("eta", eta))
		}
	}

	// An interrupted scan publishes nothing: a cancelled context drains
	// every in-flight fetch as a failure, and that all-failure record set
	// must never replace the last good snapshot.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	snapshot := c.buildSnapshot(scanID, startedAt, universe, records)

	if err := c.store.Publish(snapshot); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordScan(snapshot); err != nil {
			c.logger.Error("record scan history", zap.Error(err))
		}
	}

	c.logger.Info("scan complete",
		zap.String("scan_id", scanID),
		zap.Int("total", snapshot.TotalSymbols),
		zap.Int("succeeded", snapshot.Succeeded),
		zap.Int("failed", snapshot.Failed),
		zap.Int("ath_count", snapshot.ATHCount),
		zap.Int64("duration_ms", snapshot.DurationMS))
	return snapshot, nil
}

// scanSymbol fetches one symbol's history and applies the detection rule.
// Every failure mode maps to a record status; nothing escapes the worker.
func (c *Coordinator) scanSymbol(ctx context.Context, sym model.Symbol) model.ScanRecord {
	rec := model.ScanRecord{
		Ticker:   sym.Ticker,
		Name:     sym.Name,
		Exchange: sym.Exchange,
	}

	series, err := c.fetcher.FetchDailyCloses(ctx, sym.Ticker)
	if err != nil {
		if fetch.KindOf(err) == fetch.KindNotFound {
			rec.Status = model.StatusDataUnavailable
		} else {
			rec.Status = model.StatusFetchError
			rec.Error = err.Error()
		}
		return rec
	}

	if len(series.Bars) < c.opts.MinHistoryBars {
		// Too little history to call anything an all-time high.
		rec.Status = model.StatusDataUnavailable
		return rec
	}

	eval, err := EvaluateATH(series, c.opts.Threshold)
	if err != nil {
		rec.Status = model.StatusDataUnavailable
		return rec
	}

	rec.Status = model.StatusOK
	rec.LatestClose = eval.Latest
	rec.HighClose = eval.High
	rec.Ratio = eval.Ratio
	rec.AllTimeHigh = eval.AllTimeHigh
	return rec
}

// buildSnapshot aggregates worker results into one immutable snapshot.
// Record ordering is imposed here, not by completion order.
func (c *Coordinator) buildSnapshot(scanID string, startedAt time.Time,
	universe *model.SymbolUniverse, records []model.ScanRecord) *model.ScanSnapshot {

	sort.Slice(records, func(i, j int) bool {
		if records[i].Exchange != records[j].Exchange {
			return records[i].Exchange < records[j].Exchange
		}
		return records[i].Ticker < records[j].Ticker
	})

	snap := &model.ScanSnapshot{
		SchemaVersion: model.SnapshotSchemaVersion,
		ScanID:        scanID,
		StartedAt:     startedAt,
		TotalSymbols:  len(records),
		Threshold:     c.opts.Threshold,
		SourceErrors:  universe.SourceErrors,
	}
	for _, rec := range records {
		if rec.Status == model.StatusOK {
			snap.Succeeded++
		} else {
			snap.Failed++
		}
		if rec.AllTimeHigh {
			snap.ATHStocks = append(snap.ATHStocks, rec)
		}
	}
	snap.ATHCount = len(snap.ATHStocks)
	if snap.ATHStocks == nil {
		snap.ATHStocks = []model.ScanRecord{}
	}
	if c.opts.KeepAllRecords {
		snap.Records = records
	}
	snap.FinishedAt = time.Now().UTC()
	snap.DurationMS = snap.FinishedAt.Sub(startedAt).Milliseconds()
	return snap
}
