package directory

import (
	"context"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// Source fetches the bulk listing of active symbols from one exchange.
type Source interface {
	FetchSymbols(ctx context.Context) ([]model.Symbol, error)
	Name() string
}

// equitySeries is the closed set of NSE series codes treated as tradable
// equity. Rows in other series (debt, government securities) are dropped
// at universe build time.
var equitySeries = map[string]bool{
	"EQ": true, "BE": true, "BZ": true, "SM": true,
	"ST": true, "N": true, "W": true, "M": true, "": true,
}
