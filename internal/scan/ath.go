package scan

import (
	"errors"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// Evaluation is the outcome of applying the all-time-high rule to one
// price series.
type Evaluation struct {
	Latest      float64
	High        float64
	Ratio       float64
	AllTimeHigh bool
}

var errEmptySeries = errors.New("no closing bars provided")

// EvaluateATH applies the detection rule: with high the maximum close in
// the series and latest the most recent close, the symbol is flagged iff
// latest >= threshold*high. The 99.5% default threshold absorbs minor
// cross-venue and rounding discrepancies.
func EvaluateATH(series *model.PriceSeries, threshold float64) (Evaluation, error) {
	if series == nil || len(series.Bars) == 0 {
		return Evaluation{}, errEmptySeries
	}
	high := series.High()
	latest := series.Latest()
	if high <= 0 {
		return Evaluation{}, errEmptySeries
	}
	return Evaluation{
		Latest:      latest,
		High:        high,
		Ratio:       latest / high,
		AllTimeHigh: latest >= threshold*high,
	}, nil
}
