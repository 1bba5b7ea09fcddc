package stats_test

import (
	"testing"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile_LinearInterpolation(t *testing.T) {
	values := []float64{4, 1, 3, 2} // sorted: 1 2 3 4

	tests := []struct {
		q        float64
		expected float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
		{0.33, 1.99},
		{0.66, 2.98},
	}

	for _, tt := range tests {
		got, err := stats.Quantile(values, tt.q)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, got, 1e-9, "q=%v", tt.q)
	}

	// Input is not reordered
	assert.Equal(t, []float64{4, 1, 3, 2}, values)
}

func TestQuantiles_Integers(t *testing.T) {
	qs, err := stats.Quantiles([]int64{10, 20, 30, 40, 50}, 0.25, 0.75)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40}, qs)
}

func TestQuantile_SingleValue(t *testing.T) {
	got, err := stats.Quantile([]float64{7}, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, got, 0)
}

func TestQuantile_Errors(t *testing.T) {
	_, err := stats.Quantile([]float64{}, 0.5)
	assert.ErrorIs(t, err, errors.ErrEmptyGroup)

	_, err = stats.Quantile([]float64{1}, 1.5)
	assert.Error(t, err)
}

func TestMode(t *testing.T) {
	mode, err := stats.Mode([]int64{3, 5, 5, 2, 3, 9})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mode, "ties resolve to the smallest value")

	mode, err = stats.Mode([]int64{8, 8, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(8), mode)

	mode, err = stats.Mode([]int64{-1, -1, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), mode)

	_, err = stats.Mode([]int64{})
	assert.ErrorIs(t, err, errors.ErrEmptyGroup)
}

func TestMeanAndSum(t *testing.T) {
	mean, err := stats.Mean([]float64{10, 30})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, mean, 0)

	_, err = stats.Mean([]float64{})
	assert.ErrorIs(t, err, errors.ErrEmptyGroup)

	assert.InDelta(t, 6.0, stats.Sum([]int{1, 2, 3}), 0)
}

func TestPercentChangeAndShare(t *testing.T) {
	change, ok := stats.PercentChange(100, 150)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, change, 1e-9)

	_, ok = stats.PercentChange(0, 10)
	assert.False(t, ok)

	assert.InDelta(t, 25.0, stats.Share(1, 4), 1e-9)
	assert.InDelta(t, 0.0, stats.Share(1, 0), 0)
}
