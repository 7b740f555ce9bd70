package model

import "time"

// ScanStatus classifies the per-symbol outcome of one scan.
type ScanStatus string

const (
	// StatusOK means the history was fetched and the ATH rule applied.
	StatusOK ScanStatus = "OK"
	// StatusDataUnavailable means the provider has no usable history for
	// the symbol (delisted, newly listed, too few bars). A normal outcome.
	StatusDataUnavailable ScanStatus = "DATA_UNAVAILABLE"
	// StatusFetchError means the fetch failed after retries.
	StatusFetchError ScanStatus = "FETCH_ERROR"
)

// ScanRecord is the per-symbol outcome of one scan. Exactly one record is
// produced per universe symbol per scan.
type ScanRecord struct {
	Ticker      string     `json:"ticker"`
	Name        string     `json:"name,omitempty"`
	Exchange    string     `json:"exchange"`
	LatestClose float64    `json:"latest_close,omitempty"`
	HighClose   float64    `json:"high_close,omitempty"`
	Ratio       float64    `json:"ratio,omitempty"`
	AllTimeHigh bool       `json:"all_time_high"`
	Status      ScanStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// SnapshotSchemaVersion is bumped whenever the persisted snapshot layout
// changes incompatibly.
const SnapshotSchemaVersion = 1

// ScanSnapshot is the atomic unit of published state: one fully-formed
// scan result set. It is built in memory during a run and published as a
// single replace-not-merge write; readers never observe a partial one.
type ScanSnapshot struct {
	SchemaVersion int       `json:"schema_version"`
	ScanID        string    `json:"scan_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DurationMS    int64     `json:"duration_ms"`

	TotalSymbols int     `json:"total_symbols"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	ATHCount     int     `json:"ath_count"`
	Threshold    float64 `json:"threshold"`

	// ATHStocks holds only the flagged records, sorted by (exchange, ticker).
	ATHStocks []ScanRecord `json:"ath_stocks"`
	// Records optionally holds the full record set when configured.
	Records []ScanRecord `json:"records,omitempty"`

	SourceErrors []string `json:"source_errors,omitempty"`
}
