package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/config"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/directory"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/fetch"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/recorder"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/scan"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/scheduler"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/server"
	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/store"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("ath scanner starting")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("create data dir", zap.Error(err))
	}

	// Symbol directory over the exchange list sources
	dir := directory.New(
		[]directory.Source{
			directory.NewNSESource(cfg.Directory.NSEListURL),
			directory.NewBSESource(cfg.Directory.BSEListURL),
		},
		cfg.Storage.SymbolCache,
		cfg.Staleness(),
		logger,
	)

	// Price-history fetcher with global pacing and bounded retries
	fetcher := fetch.NewYahooFetcher(logger,
		fetch.WithRange(cfg.Fetch.HistoryRange),
		fetch.WithTimeout(cfg.FetchTimeout()),
		fetch.WithRateLimit(cfg.Fetch.RatePerSecond, cfg.Fetch.RateBurst),
		fetch.WithRetryPolicy(fetch.RetryPolicy{
			MaxAttempts:     cfg.Fetch.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		}),
		fetch.WithProxy(cfg.Proxy),
	)
	logger.Info("price source ready", zap.String("source", fetcher.Name()))

	// Result snapshot store
	results := store.New(cfg.Storage.ResultFile, logger)

	// Scan history recorder
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	coordinator := scan.NewCoordinator(dir, fetcher, results, rec, logger, scan.Options{
		Workers:        cfg.Scan.Workers,
		Threshold:      cfg.Scan.ATHThreshold,
		MinHistoryBars: cfg.Scan.MinHistoryBars,
		KeepAllRecords: cfg.Scan.KeepAllRecords,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cron trigger
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.Error(err))
	}
	sched := scheduler.NewScheduler(ctx, coordinator, loc, logger)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		logger.Fatal("register cron task", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// Dashboard API
	srv := server.New(ctx, cfg.Server.Port, coordinator, results, dir, logger)
	srv.Start()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, executing scan now")
		go sched.RunNow()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	logger.Info("ath scanner stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg := zap.Config{
		Level:            zapLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
