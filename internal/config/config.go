package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Storage struct {
		DataDir     string `yaml:"data_dir"`
		SymbolCache string `yaml:"symbol_cache"`
		ResultFile  string `yaml:"result_file"`
		SQLitePath  string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Directory struct {
		// -1 treats the cache as always stale so every scan refreshes it.
		StalenessDays int    `yaml:"staleness_days"`
		NSEListURL    string `yaml:"nse_list_url"`
		BSEListURL    string `yaml:"bse_list_url"`
	} `yaml:"directory"`
	Fetch struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
		// -1 disables retries, leaving a single attempt per symbol.
		MaxRetries    int     `yaml:"max_retries"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
		HistoryRange  string  `yaml:"history_range"`
	} `yaml:"fetch"`
	Scan struct {
		Workers        int     `yaml:"workers"`
		ATHThreshold   float64 `yaml:"ath_threshold"`
		MinHistoryBars int     `yaml:"min_history_bars"`
		KeepAllRecords bool    `yaml:"keep_all_records"`
	} `yaml:"scan"`
	Schedule struct {
		Cron     string `yaml:"cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SymbolCache == "" {
		cfg.Storage.SymbolCache = cfg.Storage.DataDir + "/all_symbols.json"
	}
	if cfg.Storage.ResultFile == "" {
		cfg.Storage.ResultFile = cfg.Storage.DataDir + "/ath_results.json"
	}
	if cfg.Directory.StalenessDays == 0 {
		cfg.Directory.StalenessDays = 7
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 20
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.RatePerSecond == 0 {
		cfg.Fetch.RatePerSecond = 8
	}
	if cfg.Fetch.RateBurst == 0 {
		cfg.Fetch.RateBurst = 8
	}
	if cfg.Fetch.HistoryRange == "" {
		cfg.Fetch.HistoryRange = "5y"
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 6
	}
	if cfg.Scan.ATHThreshold == 0 {
		cfg.Scan.ATHThreshold = 0.995
	}
	if cfg.Scan.MinHistoryBars == 0 {
		cfg.Scan.MinHistoryBars = 20
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 31 15 * * 1-5"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Asia/Kolkata"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "5000"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// FetchTimeout returns the per-request timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Staleness returns the symbol-cache staleness threshold as a duration.
// The -1 sentinel maps to zero, so the cache never counts as fresh.
func (c *Config) Staleness() time.Duration {
	if c.Directory.StalenessDays < 0 {
		return 0
	}
	return time.Duration(c.Directory.StalenessDays) * 24 * time.Hour
}

// Validate checks that all required fields are sane.
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be positive")
	}
	if c.Scan.ATHThreshold <= 0 || c.Scan.ATHThreshold > 1 {
		return fmt.Errorf("scan.ath_threshold must be in (0, 1]")
	}
	if c.Fetch.RatePerSecond <= 0 {
		return fmt.Errorf("fetch.rate_per_second must be positive")
	}
	if c.Fetch.MaxRetries < -1 {
		return fmt.Errorf("fetch.max_retries must be positive, or -1 to disable retries")
	}
	if c.Directory.StalenessDays < -1 {
		return fmt.Errorf("directory.staleness_days must be positive, or -1 to always refresh")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}
