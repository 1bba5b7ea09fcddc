// Package sample draws the stratified customer sample shown on the map.
package sample

import (
	"math"
	"math/rand/v2"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/validation"
)

// DefaultFraction is the share of each tier kept for the map
const DefaultFraction = 0.05

// sizeEpsilon absorbs float error in n*fraction (30*0.1 is 3.0000000000000004)
const sizeEpsilon = 1e-9

// NewSource returns the seeded generator used for sampling
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

// Size returns ceil(n*fraction), clamped to n.
func Size(n int, fraction float64) int {
	k := int(math.Ceil(float64(n)*fraction - sizeEpsilon))
	return max(0, min(k, n))
}

// Stratified draws Size(|tier|, fraction) rows without replacement from each
// tier independently. Tiers are drawn in the order low, med, high from a
// single generator, and the selected rows are returned in their original
// order, so equal input, fraction and source state give an identical sample.
func Stratified(spend table.Table[model.CustomerSpend], fraction float64, src rand.Source) (table.Table[model.CustomerSpend], model.SamplingInfo, error) {
	if err := validation.ValidateFraction("Stratified", "fraction", fraction); err != nil {
		return table.Table[model.CustomerSpend]{}, model.SamplingInfo{}, err
	}
	if src == nil {
		return table.Table[model.CustomerSpend]{}, model.SamplingInfo{},
			errors.NewInvalidInputError("Stratified", "random source is required")
	}

	strata := make(map[model.SpendTier][]int, len(model.Tiers))
	for i, c := range spend.All() {
		if c.SpentRate == model.TierUnassigned {
			return table.Table[model.CustomerSpend]{}, model.SamplingInfo{},
				errors.NewValidationError("Stratified", "spent_rate", "customer "+c.CustomerID+" has no tier")
		}
		strata[c.SpentRate] = append(strata[c.SpentRate], i)
	}

	info := model.SamplingInfo{
		Fraction:   fraction,
		Population: make(map[model.SpendTier]int, len(model.Tiers)),
		Sampled:    make(map[model.SpendTier]int, len(model.Tiers)),
	}

	rng := rand.New(src)
	selected := make([]bool, spend.Len())
	for _, tier := range model.Tiers {
		positions := strata[tier]
		n := len(positions)
		k := Size(n, fraction)

		// partial Fisher-Yates over the tier's row positions
		for i := 0; i < k; i++ {
			j := i + rng.IntN(n-i)
			positions[i], positions[j] = positions[j], positions[i]
			selected[positions[i]] = true
		}

		info.Population[tier] = n
		info.Sampled[tier] = k
	}

	out := make([]model.CustomerSpend, 0, len(selected))
	for i, c := range spend.All() {
		if selected[i] {
			out = append(out, c)
		}
	}
	return table.From(out), info, nil
}
