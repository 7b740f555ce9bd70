package model

import "time"

// ClosingBar is one daily closing price.
type ClosingBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries holds the daily closing-price history for one symbol,
// ordered by date ascending with no duplicate dates. A series shorter
// than the requested window is valid (recently listed securities).
type PriceSeries struct {
	Ticker    string       `json:"ticker"`
	Bars      []ClosingBar `json:"bars"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Latest returns the most recent close, or 0 if the series is empty.
func (p *PriceSeries) Latest() float64 {
	if len(p.Bars) == 0 {
		return 0
	}
	return p.Bars[len(p.Bars)-1].Close
}

// High returns the maximum close over the whole series, or 0 if empty.
func (p *PriceSeries) High() float64 {
	var high float64
	for _, b := range p.Bars {
		if b.Close > high {
			high = b.Close
		}
	}
	return high
}
