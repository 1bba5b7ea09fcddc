// Package outlier winsorizes the upper tail of customer spend.
package outlier

import (
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/paveg/olist-eda/internal/table"
)

// DefaultIQRFactor is the Tukey fence multiplier
const DefaultIQRFactor = 1.5

// Bounds computes the IQR fences of total spend.
func Bounds(spend table.Table[model.CustomerSpend], factor float64) (model.SpendBounds, error) {
	if factor < 0 {
		return model.SpendBounds{}, errors.NewInvalidInputError("Cap", "IQR factor must be non-negative")
	}

	totals := make([]float64, spend.Len())
	for i, c := range spend.All() {
		totals[i] = c.TotalSpent
	}
	qs, err := stats.Quantiles(totals, 0.25, 0.75)
	if err != nil {
		return model.SpendBounds{}, &errors.EmptyGroupError{Op: "quantile", Column: "total_spent"}
	}

	iqr := qs[1] - qs[0]
	return model.SpendBounds{
		Q1:    qs[0],
		Q3:    qs[1],
		IQR:   iqr,
		Lower: qs[0] - factor*iqr,
		Upper: qs[1] + factor*iqr,
	}, nil
}

// Cap replaces every total above Q3 + factor*IQR with that bound. The lower
// fence is reported in the bounds and never applied. Row count and order
// are preserved.
func Cap(spend table.Table[model.CustomerSpend], factor float64) (table.Table[model.CustomerSpend], model.SpendBounds, error) {
	bounds, err := Bounds(spend, factor)
	if err != nil {
		return table.Table[model.CustomerSpend]{}, model.SpendBounds{}, err
	}

	capped := table.Map(spend, func(c model.CustomerSpend) model.CustomerSpend {
		if c.TotalSpent > bounds.Upper {
			c.TotalSpent = bounds.Upper
			bounds.Capped++
		}
		return c
	})
	return capped, bounds, nil
}
