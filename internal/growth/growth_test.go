package growth_test

import (
	"testing"
	"time"

	"github.com/paveg/olist-eda/internal/aggregate"
	"github.com/paveg/olist-eda/internal/cleaner"
	"github.com/paveg/olist-eda/internal/growth"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(m int) time.Time {
	return time.Date(2017, time.Month(m), 10, 12, 0, 0, 0, time.UTC)
}

func TestMonthly_Fixture(t *testing.T) {
	ds, _, _, err := cleaner.Clean(testutil.Dataset(t))
	require.NoError(t, err)
	sold := aggregate.SoldItems(ds.Items, ds.Orders)

	rows := growth.Monthly(ds.Orders, sold, ds.Customers)
	require.Equal(t, 3, rows.Len())

	jan := rows.At(0)
	assert.Equal(t, "2017-01", jan.Month)
	assert.Equal(t, model.CustomerNew, jan.CustomerType)
	assert.Equal(t, int64(2), jan.TotalOrder)
	assert.InDelta(t, 60.0, jan.TotalSpent, 0)
	assert.InDelta(t, 100.0, jan.TotalSpentPct, 1e-9)
	assert.False(t, jan.SpentGrowthPct.Valid, "first month has no growth")
	assert.False(t, jan.OrderGrowthPct.Valid)

	febNew := rows.At(1)
	assert.Equal(t, model.CustomerNew, febNew.CustomerType)
	assert.InDelta(t, 100.0, febNew.TotalSpent, 0)
	assert.InDelta(t, (100.0-60)/60*100, febNew.SpentGrowthPct.V, 1e-9)
	assert.InDelta(t, -50.0, febNew.OrderGrowthPct.V, 1e-9)

	// u1 bought in January as c1 and again in February as c5
	febReturning := rows.At(2)
	assert.Equal(t, model.CustomerReturning, febReturning.CustomerType)
	assert.InDelta(t, 70.0, febReturning.TotalSpent, 0)
	assert.InDelta(t, 50.0, febReturning.TotalOrderPct, 1e-9)
	assert.False(t, febReturning.SpentGrowthPct.Valid, "first returning month has no growth")
}

func TestMonthly_GrowthAgainstPreviousMonthOfSameType(t *testing.T) {
	orders := table.From([]model.Order{
		{OrderID: "a1", CustomerID: "a", PurchasedAt: month(1)},
		{OrderID: "b1", CustomerID: "b", PurchasedAt: month(1)},
		{OrderID: "a2", CustomerID: "a", PurchasedAt: month(2)},
		{OrderID: "a3", CustomerID: "a", PurchasedAt: month(3)},
		{OrderID: "b3", CustomerID: "b", PurchasedAt: month(3)},
		{OrderID: "c3", CustomerID: "c", PurchasedAt: month(3)},
	})
	items := table.From([]model.OrderItem{
		{OrderID: "a1", Price: 10}, {OrderID: "b1", Price: 30},
		{OrderID: "a2", Price: 20},
		{OrderID: "a3", Price: 15}, {OrderID: "b3", Price: 15}, {OrderID: "c3", Price: 80},
	})

	rows := growth.Monthly(orders, items, table.Table[model.Customer]{})
	require.Equal(t, 4, rows.Len())

	// 2017-01 new, 2017-02 returning, 2017-03 new, 2017-03 returning
	assert.Equal(t, "2017-03", rows.At(2).Month)
	assert.Equal(t, model.CustomerNew, rows.At(2).CustomerType)
	assert.InDelta(t, 100.0, rows.At(2).SpentGrowthPct.V, 1e-9, "80 vs 40 two months earlier")
	assert.InDelta(t, -50.0, rows.At(2).OrderGrowthPct.V, 1e-9)

	returning := rows.At(3)
	assert.Equal(t, model.CustomerReturning, returning.CustomerType)
	assert.InDelta(t, 50.0, returning.SpentGrowthPct.V, 1e-9, "30 vs 20")
	assert.InDelta(t, 100.0, returning.OrderGrowthPct.V, 1e-9)
}

func TestMonthly_Empty(t *testing.T) {
	rows := growth.Monthly(table.Table[model.Order]{}, table.Table[model.OrderItem]{}, table.Table[model.Customer]{})
	assert.Equal(t, 0, rows.Len())
}

func TestMonthly_ZeroPreviousIsNull(t *testing.T) {
	orders := table.From([]model.Order{
		{OrderID: "a1", CustomerID: "a", PurchasedAt: month(1)},
		{OrderID: "b2", CustomerID: "b", PurchasedAt: month(2)},
	})
	items := table.From([]model.OrderItem{{OrderID: "a1", Price: 0}, {OrderID: "b2", Price: 9}})

	rows := growth.Monthly(orders, items, table.Table[model.Customer]{})
	require.Equal(t, 2, rows.Len())
	assert.False(t, rows.At(1).SpentGrowthPct.Valid)
	assert.InDelta(t, 0.0, rows.At(1).OrderGrowthPct.V, 1e-9)
	assert.True(t, rows.At(1).OrderGrowthPct.Valid)
}
