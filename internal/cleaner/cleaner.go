// Package cleaner removes duplicate and out-of-scope source rows and fills
// missing delivery dates.
package cleaner

import (
	"time"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/paveg/olist-eda/internal/table"
)

const day = 24 * time.Hour

// Clean runs every cleaning step and returns a new dataset. Tables the
// cleaner does not touch are passed through unchanged.
func Clean(ds model.Dataset) (model.Dataset, model.CleaningReport, model.DeliveryLags, error) {
	var report model.CleaningReport

	geos, dropped := DedupGeolocation(ds.Geolocations)
	report.DroppedGeolocations = dropped

	orders, dropped := DropUnapproved(ds.Orders)
	report.DroppedOrders = dropped

	lags, err := DeliveryLags(orders)
	if err != nil {
		return model.Dataset{}, report, model.DeliveryLags{}, err
	}

	orders, report.ImputedCarrier, report.ImputedCustomer = Impute(orders, lags)

	out := ds
	out.Geolocations = geos
	out.Orders = orders
	return out, report, lags, nil
}

// DedupGeolocation keeps the first row per zip code prefix. It returns the
// number of rows removed.
func DedupGeolocation(geos table.Table[model.Geolocation]) (table.Table[model.Geolocation], int) {
	deduped := table.DistinctBy(geos, func(g model.Geolocation) string { return g.ZipCodePrefix })
	return deduped, geos.Len() - deduped.Len()
}

// DropUnapproved removes orders that were never approved.
func DropUnapproved(orders table.Table[model.Order]) (table.Table[model.Order], int) {
	kept := orders.Filter(func(o model.Order) bool { return o.ApprovedAt.Valid })
	return kept, orders.Len() - kept.Len()
}

// DeliveryLags computes the modal whole-day delay from approval to carrier
// hand-off and to customer delivery, each over the orders where both
// timestamps are present. Ties resolve to the shorter lag.
func DeliveryLags(orders table.Table[model.Order]) (model.DeliveryLags, error) {
	var carrier, customer []int64
	for _, o := range orders.All() {
		approved, ok := o.ApprovedAt.Get()
		if !ok {
			continue
		}
		if t, ok := o.DeliveredCarrierAt.Get(); ok {
			carrier = append(carrier, WholeDays(t.Sub(approved)))
		}
		if t, ok := o.DeliveredCustomerAt.Get(); ok {
			customer = append(customer, WholeDays(t.Sub(approved)))
		}
	}

	if len(carrier) == 0 {
		return model.DeliveryLags{}, errors.NewEmptyGroupError("mode", "order_delivered_carrier_date")
	}
	if len(customer) == 0 {
		return model.DeliveryLags{}, errors.NewEmptyGroupError("mode", "order_delivered_customer_date")
	}

	carrierDays, err := stats.Mode(carrier)
	if err != nil {
		return model.DeliveryLags{}, err
	}
	customerDays, err := stats.Mode(customer)
	if err != nil {
		return model.DeliveryLags{}, err
	}
	return model.DeliveryLags{CarrierDays: carrierDays, CustomerDays: customerDays}, nil
}

// Impute fills missing delivery dates of approved orders with approval time
// plus the modal lag. Present values are never replaced. It returns the new
// table and how many carrier and customer dates were filled.
func Impute(orders table.Table[model.Order], lags model.DeliveryLags) (table.Table[model.Order], int, int) {
	var carrier, customer int
	imputed := table.Map(orders, func(o model.Order) model.Order {
		approved, ok := o.ApprovedAt.Get()
		if !ok {
			return o
		}
		if !o.DeliveredCarrierAt.Valid {
			o.DeliveredCarrierAt = model.Some(approved.Add(time.Duration(lags.CarrierDays) * day))
			carrier++
		}
		if !o.DeliveredCustomerAt.Valid {
			o.DeliveredCustomerAt = model.Some(approved.Add(time.Duration(lags.CustomerDays) * day))
			customer++
		}
		return o
	})
	return imputed, carrier, customer
}

// WholeDays floors a duration to whole days.
func WholeDays(d time.Duration) int64 {
	days := int64(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
