package model

import "time"

// Exchange identifiers used by the symbol sources.
const (
	ExchangeNSE = "NSE"
	ExchangeBSE = "BSE"
)

// Symbol identifies one listed security on one exchange.
type Symbol struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Series   string `json:"series"`
}

// Key returns the (ticker, exchange) pair used for deduplication.
func (s Symbol) Key() string {
	return s.Exchange + ":" + s.Ticker
}

// SymbolUniverse is the full set of symbols eligible for one scan cycle.
// It is built once per refresh and treated as read-only afterwards; a
// refresh produces a new universe rather than mutating this one.
type SymbolUniverse struct {
	SchemaVersion int       `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Symbols       []Symbol  `json:"symbols"`

	// SourceErrors lists symbol sources that failed during the refresh
	// that produced this universe. A universe with source errors is still
	// usable as long as at least one source succeeded.
	SourceErrors []string `json:"source_errors,omitempty"`
}

// UniverseSchemaVersion is bumped whenever the cached universe layout
// changes incompatibly, so an old cache is refreshed instead of misread.
const UniverseSchemaVersion = 1

// Age returns how long ago the universe was generated.
func (u *SymbolUniverse) Age(now time.Time) time.Duration {
	return now.Sub(u.GeneratedAt)
}
