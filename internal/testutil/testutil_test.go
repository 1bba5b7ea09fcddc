package testutil_test

import (
	"testing"

	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/paveg/olist-eda/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := dataframe.New(series.New("id", []string{"a", "b"}, mem.Allocator))
	testutil.AssertDataFrameHasColumns(t, df, []string{"id"})
	df.Release()
}

func TestDataset(t *testing.T) {
	ds := testutil.Dataset(t)

	assert.Equal(t, 5, ds.Orders.Len())
	assert.Equal(t, 7, ds.Items.Len())
	assert.Equal(t, 5, ds.Customers.Len())
	assert.Equal(t, 3, ds.Geolocations.Len())
	assert.Equal(t, 3, ds.Products.Len())
	assert.Equal(t, 2, ds.Translations.Len())
}

func TestTieredSpend(t *testing.T) {
	spend := testutil.TieredSpend(5, 3, 2)
	assert.Equal(t, 10, spend.Len())

	counts := map[model.SpendTier]int{}
	for _, row := range spend.All() {
		counts[row.SpentRate]++
		assert.True(t, row.HasLocation())
	}
	assert.Equal(t, map[model.SpendTier]int{model.TierLow: 5, model.TierMed: 3, model.TierHigh: 2}, counts)
}

func TestSpend_WithoutLocation(t *testing.T) {
	spend := testutil.Spend([]float64{1, 2, 3}, testutil.WithoutLocation(1))
	assert.True(t, spend.At(0).HasLocation())
	assert.False(t, spend.At(1).HasLocation())
	assert.Equal(t, "c2", spend.At(2).CustomerID)
}
