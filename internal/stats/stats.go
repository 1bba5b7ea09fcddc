// Package stats implements the order statistics used by the cleaning,
// capping and segmentation stages.
package stats

import (
	"math"
	"slices"

	"github.com/paveg/olist-eda/internal/errors"
	"golang.org/x/exp/constraints"
)

// Number is any integer or floating point type
type Number interface {
	constraints.Integer | constraints.Float
}

// Quantile returns the q-quantile of values using linear interpolation
// between closest ranks: h = (n-1)q, result = x[floor(h)] + (h-floor(h))(x[floor(h)+1]-x[floor(h)]).
func Quantile[T Number](values []T, q float64) (float64, error) {
	qs, err := Quantiles(values, q)
	if err != nil {
		return 0, err
	}
	return qs[0], nil
}

// Quantiles computes several quantiles with a single sort
func Quantiles[T Number](values []T, qs ...float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, errors.NewEmptyGroupError("quantile", "")
	}
	for _, q := range qs {
		if q < 0 || q > 1 || math.IsNaN(q) {
			return nil, errors.NewInvalidInputError("quantile", "quantile must be in [0, 1]")
		}
	}

	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = float64(v)
	}
	slices.Sort(sorted)

	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = interpolate(sorted, q)
	}
	return out, nil
}

func interpolate(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Mode returns the most frequent value. Ties resolve to the smallest value so
// the result does not depend on input order.
func Mode[T constraints.Ordered](values []T) (T, error) {
	var best T
	if len(values) == 0 {
		return best, errors.NewEmptyGroupError("mode", "")
	}

	counts := make(map[T]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	bestCount := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, nil
}

// Mean returns the arithmetic mean
func Mean[T Number](values []T) (float64, error) {
	if len(values) == 0 {
		return 0, errors.NewEmptyGroupError("mean", "")
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values)), nil
}

// Sum adds values as float64
func Sum[T Number](values []T) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum
}

// PercentChange returns 100*(curr-prev)/prev, or false when prev is zero.
func PercentChange(prev, curr float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return (curr - prev) / prev * 100, true
}

// Share returns 100*part/total, or 0 when total is zero.
func Share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
