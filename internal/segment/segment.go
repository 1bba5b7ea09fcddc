// Package segment assigns spend tiers from quantile thresholds.
package segment

import (
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/validation"
)

// Default tier quantiles.
const (
	DefaultLowQuantile  = 0.33
	DefaultHighQuantile = 0.66
)

// Assign computes the low and high quantiles of total spend and tiers every
// customer: high at or above the high threshold, med at or above the low
// threshold, low otherwise.
func Assign(spend table.Table[model.CustomerSpend], lowQ, highQ float64) (table.Table[model.CustomerSpend], model.TierThresholds, error) {
	if err := validation.NewCompoundValidator(
		validation.NewRangeValidator("Assign", "low quantile", lowQ, 0, 1).Inclusive(),
		validation.NewRangeValidator("Assign", "high quantile", highQ, 0, 1).Inclusive(),
	).Validate(); err != nil {
		return table.Table[model.CustomerSpend]{}, model.TierThresholds{}, err
	}
	if lowQ > highQ {
		return table.Table[model.CustomerSpend]{}, model.TierThresholds{},
			errors.NewInvalidInputError("Assign", "low quantile must not exceed high quantile")
	}

	totals := make([]float64, spend.Len())
	for i, c := range spend.All() {
		totals[i] = c.TotalSpent
	}
	qs, err := stats.Quantiles(totals, lowQ, highQ)
	if err != nil {
		return table.Table[model.CustomerSpend]{}, model.TierThresholds{},
			&errors.EmptyGroupError{Op: "quantile", Column: "total_spent"}
	}

	thresholds := model.TierThresholds{
		LowQuantile:  lowQ,
		HighQuantile: highQ,
		Low:          qs[0],
		High:         qs[1],
	}
	tiered := table.Map(spend, func(c model.CustomerSpend) model.CustomerSpend {
		c.SpentRate = Classify(c.TotalSpent, thresholds)
		return c
	})
	return tiered, thresholds, nil
}

// Classify returns the tier of one total
func Classify(total float64, t model.TierThresholds) model.SpendTier {
	switch {
	case total >= t.High:
		return model.TierHigh
	case total >= t.Low:
		return model.TierMed
	default:
		return model.TierLow
	}
}
