package segment_test

import (
	"testing"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/segment"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	spend := testutil.Spend([]float64{4, 1, 3, 2})

	tiered, thresholds, err := segment.Assign(spend, segment.DefaultLowQuantile, segment.DefaultHighQuantile)
	require.NoError(t, err)

	assert.InDelta(t, 1.99, thresholds.Low, 1e-9)
	assert.InDelta(t, 2.98, thresholds.High, 1e-9)
	assert.InDelta(t, 0.33, thresholds.LowQuantile, 0)

	tiers := []model.SpendTier{}
	for _, c := range tiered.All() {
		tiers = append(tiers, c.SpentRate)
	}
	assert.Equal(t, []model.SpendTier{model.TierHigh, model.TierLow, model.TierHigh, model.TierMed}, tiers)

	// input keeps no tiers
	assert.Equal(t, model.TierUnassigned, spend.At(0).SpentRate)
}

func TestAssign_TierPartition(t *testing.T) {
	totals := []float64{5, 5, 5, 12, 90, 33, 33, 7, 250, 41, 0, 18, 18, 64, 2}
	spend := testutil.Spend(totals)

	tiered, thresholds, err := segment.Assign(spend, 0.33, 0.66)
	require.NoError(t, err)

	counts := map[model.SpendTier]int{}
	for _, c := range tiered.All() {
		counts[c.SpentRate]++
		switch c.SpentRate {
		case model.TierHigh:
			assert.GreaterOrEqual(t, c.TotalSpent, thresholds.High)
		case model.TierMed:
			assert.GreaterOrEqual(t, c.TotalSpent, thresholds.Low)
			assert.Less(t, c.TotalSpent, thresholds.High)
		case model.TierLow:
			assert.Less(t, c.TotalSpent, thresholds.Low)
		default:
			t.Fatalf("customer %s has no tier", c.CustomerID)
		}
	}
	assert.Equal(t, len(totals), counts[model.TierLow]+counts[model.TierMed]+counts[model.TierHigh])
}

func TestAssign_Errors(t *testing.T) {
	_, _, err := segment.Assign(table.Table[model.CustomerSpend]{}, 0.33, 0.66)
	assert.ErrorIs(t, err, errors.ErrEmptyGroup)

	_, _, err = segment.Assign(testutil.Spend([]float64{1}), 0.7, 0.3)
	assert.Error(t, err)

	_, _, err = segment.Assign(testutil.Spend([]float64{1}), 0.3, 1.2)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	th := model.TierThresholds{Low: 10, High: 20}
	assert.Equal(t, model.TierLow, segment.Classify(9.99, th))
	assert.Equal(t, model.TierMed, segment.Classify(10, th))
	assert.Equal(t, model.TierHigh, segment.Classify(20, th))
}
