// Package testutil provides fixtures shared by the pipeline tests.
//
// The fixture dataset is a handful of Olist rows written as CSV text, so the
// same data exercises the loader and every stage after it:
//   - five orders, one never approved, one missing each delivery date
//   - six items, one for a product absent from the products table
//   - two customers sharing a unique id across purchase months
//   - geolocation with a duplicated and an unpadded zip prefix, and none
//     for one ordering customer
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/loader"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture source files.
const (
	OrdersCSV = `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
o1,c1,delivered,2017-01-05 10:00:00,2017-01-05 12:00:00,2017-01-07 12:00:00,2017-01-12 12:00:00,2017-01-20 00:00:00
o2,c2,delivered,2017-01-05 15:00:00,2017-01-06 09:00:00,2017-01-08 10:00:00,,2017-01-25 00:00:00
o3,c3,delivered,2017-02-10 08:00:00,2017-02-10 09:00:00,,2017-02-17 09:00:00,2017-02-28 00:00:00
o4,c5,delivered,2017-02-20 11:00:00,2017-02-20 11:30:00,2017-02-23 11:30:00,2017-03-01 11:30:00,2017-03-10 00:00:00
o5,c4,canceled,2017-02-21 10:00:00,,,,2017-03-15 00:00:00
`

	ItemsCSV = `order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value
o1,1,p1,s1,2017-01-09 12:00:00,10.00,5.10
o1,2,p2,s1,2017-01-09 12:00:00,20.00,5.10
o2,1,p1,s2,2017-01-10 09:00:00,30.00,7.00
o3,1,p3,s2,2017-02-14 09:00:00,100.00,12.50
o4,1,p1,s1,2017-02-24 11:30:00,20.00,4.00
o4,2,p4,s3,2017-02-24 11:30:00,50.00,4.00
o5,1,p2,s1,2017-02-25 10:00:00,40.00,6.00
`

	CustomersCSV = `customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state
c1,u1,01037,sao paulo,SP
c2,u2,13000,campinas,SP
c3,u3,20000,rio de janeiro,RJ
c4,u4,99999,nowhere,XX
c5,u1,01037,sao paulo,SP
`

	GeolocationCSV = `geolocation_zip_code_prefix,geolocation_lat,geolocation_lng,geolocation_city,geolocation_state
1037,-23.5,-46.6,sao paulo,SP
01037,-23.9,-46.9,sao paulo,SP
20000,-22.9,-43.2,rio de janeiro,RJ
`

	ProductsCSV = `product_id,product_category_name
p1,brinquedos
p2,livros
p3,utilidades
`

	TranslationsCSV = `product_category_name,product_category_name_english
brinquedos,toys
livros,books
`
)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a checked allocator that fails the test when Arrow
// buffers leak.
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewCheckedAllocator(memory.NewGoAllocator())

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup: func() {
			allocator.AssertSize(tb, 0)
		},
	}
}

// WriteSources writes the fixture files into dir and returns their paths.
func WriteSources(tb testing.TB, dir string) loader.Sources {
	tb.Helper()

	sources := loader.DefaultSources(dir)
	files := map[string]string{
		sources.Orders:       OrdersCSV,
		sources.Items:        ItemsCSV,
		sources.Customers:    CustomersCSV,
		sources.Geolocations: GeolocationCSV,
		sources.Products:     ProductsCSV,
		sources.Translations: TranslationsCSV,
	}
	for path, content := range files {
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	}
	return sources
}

// Dataset parses the fixture files into a raw dataset.
func Dataset(tb testing.TB) model.Dataset {
	tb.Helper()

	l := loader.New(loader.Sources{})
	var (
		ds  model.Dataset
		err error
	)
	ds.Orders, err = l.ReadOrders(strings.NewReader(OrdersCSV))
	require.NoError(tb, err)
	ds.Items, err = l.ReadItems(strings.NewReader(ItemsCSV))
	require.NoError(tb, err)
	ds.Customers, err = l.ReadCustomers(strings.NewReader(CustomersCSV))
	require.NoError(tb, err)
	ds.Geolocations, err = l.ReadGeolocations(strings.NewReader(GeolocationCSV))
	require.NoError(tb, err)
	ds.Products, err = l.ReadProducts(strings.NewReader(ProductsCSV))
	require.NoError(tb, err)
	ds.Translations, err = l.ReadTranslations(strings.NewReader(TranslationsCSV))
	require.NoError(tb, err)
	return ds
}

// SpendOption configures Spend
type SpendOption func(*spendConfig)

type spendConfig struct {
	tiers     []model.SpendTier
	unlocated map[int]bool
}

// WithTiers assigns tiers row by row
func WithTiers(tiers ...model.SpendTier) SpendOption {
	return func(cfg *spendConfig) {
		cfg.tiers = tiers
	}
}

// WithoutLocation leaves the given rows without coordinates
func WithoutLocation(rows ...int) SpendOption {
	return func(cfg *spendConfig) {
		for _, r := range rows {
			cfg.unlocated[r] = true
		}
	}
}

// Spend builds a customer spend table with one row per total. Rows get ids
// c0, c1, ... and distinct coordinates.
func Spend(totals []float64, opts ...SpendOption) table.Table[model.CustomerSpend] {
	cfg := &spendConfig{unlocated: map[int]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	rows := make([]model.CustomerSpend, len(totals))
	for i, total := range totals {
		row := model.CustomerSpend{
			CustomerID:       "c" + strconv.Itoa(i),
			CustomerUniqueID: "u" + strconv.Itoa(i),
			TotalSpent:       total,
			ZipCodePrefix:    "01000",
			City:             cities[i%len(cities)],
			State:            states[i%len(states)],
		}
		if !cfg.unlocated[i] {
			row.Lat = model.Some(-20 - float64(i)/100)
			row.Lng = model.Some(-45 - float64(i)/100)
		}
		if i < len(cfg.tiers) {
			row.SpentRate = cfg.tiers[i]
		}
		rows[i] = row
	}
	return table.From(rows)
}

// TieredSpend builds a located spend table with the given number of rows per
// tier, interleaved so tiers are not contiguous.
func TieredSpend(low, med, high int) table.Table[model.CustomerSpend] {
	remaining := map[model.SpendTier]int{model.TierLow: low, model.TierMed: med, model.TierHigh: high}
	var totals []float64
	var tiers []model.SpendTier
	for len(totals) < low+med+high {
		for _, tier := range model.Tiers {
			if remaining[tier] == 0 {
				continue
			}
			remaining[tier]--
			tiers = append(tiers, tier)
			totals = append(totals, tierBase[tier]+float64(len(totals)))
		}
	}
	return Spend(totals, WithTiers(tiers...))
}

// AssertDataFrameHasColumns verifies that a DataFrame has the expected columns in order.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Equal(t, expectedColumns, df.Columns(), "columns should match")
}

var (
	cities   = []string{"sao paulo", "campinas", "rio de janeiro", "curitiba"}
	states   = []string{"SP", "SP", "RJ", "PR"}
	tierBase = map[model.SpendTier]float64{model.TierLow: 0, model.TierMed: 1000, model.TierHigh: 2000}
)
