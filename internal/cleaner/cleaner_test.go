package cleaner_test

import (
	"testing"
	"time"

	"github.com/paveg/olist-eda/internal/cleaner"
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse(model.TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClean(t *testing.T) {
	ds := testutil.Dataset(t)

	cleaned, report, lags, err := cleaner.Clean(ds)
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryLags{CarrierDays: 2, CustomerDays: 7}, lags)
	assert.Equal(t, model.CleaningReport{
		DroppedOrders:       1,
		DroppedGeolocations: 1,
		ImputedCarrier:      1,
		ImputedCustomer:     1,
	}, report)

	assert.Equal(t, 4, cleaned.Orders.Len())
	assert.Equal(t, 2, cleaned.Geolocations.Len())
	assert.Equal(t, ds.Items, cleaned.Items, "untouched tables pass through")

	// o2 lacked a customer date, o3 a carrier date
	assert.Equal(t, ts("2017-01-13 09:00:00"), cleaned.Orders.At(1).DeliveredCustomerAt.V)
	assert.Equal(t, ts("2017-02-12 09:00:00"), cleaned.Orders.At(2).DeliveredCarrierAt.V)

	for _, o := range cleaned.Orders.All() {
		assert.True(t, o.ApprovedAt.Valid)
		assert.True(t, o.DeliveredCarrierAt.Valid)
		assert.True(t, o.DeliveredCustomerAt.Valid)
	}

	// Input is not mutated
	assert.Equal(t, 5, ds.Orders.Len())
	assert.False(t, ds.Orders.At(1).DeliveredCustomerAt.Valid)
}

func TestDedupGeolocation_Idempotent(t *testing.T) {
	geos := table.From([]model.Geolocation{
		{ZipCodePrefix: "01037", Lat: 1},
		{ZipCodePrefix: "20000", Lat: 2},
		{ZipCodePrefix: "01037", Lat: 3},
		{ZipCodePrefix: "20000", Lat: 4},
		{ZipCodePrefix: "30000", Lat: 5},
	})

	once, dropped := cleaner.DedupGeolocation(geos)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []float64{1, 2, 5}, []float64{once.At(0).Lat, once.At(1).Lat, once.At(2).Lat},
		"first occurrence wins")

	twice, dropped := cleaner.DedupGeolocation(once)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, once, twice)
}

func TestImpute_PreservesPresentValues(t *testing.T) {
	approved := ts("2017-03-01 10:00:00")
	carrier := ts("2017-03-04 18:30:00")
	orders := table.From([]model.Order{
		{OrderID: "a", ApprovedAt: model.Some(approved), DeliveredCarrierAt: model.Some(carrier)},
		{OrderID: "b", ApprovedAt: model.Some(approved)},
		{OrderID: "c"},
	})

	imputed, carrierFilled, customerFilled := cleaner.Impute(orders, model.DeliveryLags{CarrierDays: 1, CustomerDays: 5})
	assert.Equal(t, 1, carrierFilled)
	assert.Equal(t, 2, customerFilled)

	for i, before := range orders.All() {
		after := imputed.At(i)
		if before.DeliveredCarrierAt.Valid {
			assert.Equal(t, before.DeliveredCarrierAt, after.DeliveredCarrierAt)
		}
	}
	assert.Equal(t, approved.Add(24*time.Hour), imputed.At(1).DeliveredCarrierAt.V)
	assert.Equal(t, approved.Add(5*24*time.Hour), imputed.At(0).DeliveredCustomerAt.V)
	assert.False(t, imputed.At(2).DeliveredCarrierAt.Valid, "unapproved orders are left alone")
}

func TestDeliveryLags(t *testing.T) {
	approved := ts("2017-01-01 00:00:00")
	order := func(carrierDays, customerDays float64) model.Order {
		return model.Order{
			ApprovedAt:          model.Some(approved),
			DeliveredCarrierAt:  model.Some(approved.Add(time.Duration(carrierDays * float64(24*time.Hour)))),
			DeliveredCustomerAt: model.Some(approved.Add(time.Duration(customerDays * float64(24*time.Hour)))),
		}
	}

	t.Run("tie resolves to smaller lag", func(t *testing.T) {
		lags, err := cleaner.DeliveryLags(table.From([]model.Order{
			order(3, 8), order(1, 8), order(3.5, 6), order(1.9, 6),
		}))
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryLags{CarrierDays: 1, CustomerDays: 6}, lags)
	})

	t.Run("no complete rows", func(t *testing.T) {
		_, err := cleaner.DeliveryLags(table.From([]model.Order{{ApprovedAt: model.Some(approved)}}))
		assert.ErrorIs(t, err, errors.ErrEmptyGroup)
	})

	t.Run("clean fails without approved orders", func(t *testing.T) {
		_, _, _, err := cleaner.Clean(model.Dataset{Orders: table.From([]model.Order{{OrderID: "x"}})})
		assert.ErrorIs(t, err, errors.ErrEmptyGroup)
	})
}

func TestWholeDays(t *testing.T) {
	assert.Equal(t, int64(2), cleaner.WholeDays(49*time.Hour))
	assert.Equal(t, int64(0), cleaner.WholeDays(23*time.Hour))
	assert.Equal(t, int64(-1), cleaner.WholeDays(-time.Hour))
	assert.Equal(t, int64(-1), cleaner.WholeDays(-24*time.Hour))
}
