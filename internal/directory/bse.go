package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

const defaultBSEListURL = "https://api.bseindia.com/BseIndiaAPI/api/getScripData/w?strCat=-1&strPrevClose=&strSector=&strIndex=0&strstart=0&strEnd=&strstock="

// BSESource fetches the BSE scrip list JSON API.
type BSESource struct {
	URL    string
	Client *http.Client
}

// NewBSESource creates a source for the BSE API, optionally overriding
// the list URL.
func NewBSESource(listURL string) *BSESource {
	if listURL == "" {
		listURL = defaultBSEListURL
	}
	return &BSESource{
		URL:    listURL,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *BSESource) Name() string { return "bse" }

// bseScripList is the API response shape. Unknown fields are ignored.
type bseScripList struct {
	Table []struct {
		ShortName string `json:"short_name"`
		LongName  string `json:"LONGNAME"`
	} `json:"Table"`
}

func (s *BSESource) FetchSymbols(ctx context.Context) ([]model.Symbol, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bse fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bse: status %d", resp.StatusCode)
	}

	var list bseScripList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("bse decode: %w", err)
	}

	symbols := make([]model.Symbol, 0, len(list.Table))
	for _, item := range list.Table {
		scrip := strings.TrimSpace(item.ShortName)
		if scrip == "" {
			continue
		}
		symbols = append(symbols, model.Symbol{
			Ticker:   scrip + ".BO",
			Name:     strings.TrimSpace(item.LongName),
			Exchange: model.ExchangeBSE,
			Series:   "EQ",
		})
	}
	return symbols, nil
}
