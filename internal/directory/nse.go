package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

const defaultNSEListURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"

// NSESource fetches the NSE equity list CSV.
type NSESource struct {
	URL    string
	Client *http.Client
}

// NewNSESource creates a source for the NSE archive, optionally overriding
// the list URL.
func NewNSESource(listURL string) *NSESource {
	if listURL == "" {
		listURL = defaultNSEListURL
	}
	return &NSESource{
		URL:    listURL,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *NSESource) Name() string { return "nse" }

// FetchSymbols downloads and parses the equity list. Columns are located
// by header name so column reordering or new columns do not break parsing.
func (s *NSESource) FetchSymbols(ctx context.Context) ([]model.Symbol, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "*/*")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nse fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nse: status %d", resp.StatusCode)
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1 // tolerate trailing columns
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("nse read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	symIdx, ok := col["SYMBOL"]
	if !ok {
		return nil, fmt.Errorf("nse: SYMBOL column missing")
	}
	nameIdx, hasName := col["NAME OF COMPANY"]
	seriesIdx, hasSeries := col["SERIES"]

	var symbols []model.Symbol
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("nse read row: %w", err)
		}
		if symIdx >= len(row) {
			continue
		}
		ticker := strings.TrimSpace(row[symIdx])
		if ticker == "" || ticker == "SYMBOL" {
			continue
		}
		sym := model.Symbol{
			Ticker:   ticker + ".NS",
			Exchange: model.ExchangeNSE,
		}
		if hasName && nameIdx < len(row) {
			sym.Name = strings.TrimSpace(row[nameIdx])
		}
		if hasSeries && seriesIdx < len(row) {
			sym.Series = strings.TrimSpace(row[seriesIdx])
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}
