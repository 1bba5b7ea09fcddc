// Package aggregate derives the summary tables from the cleaned dataset.
//
// Joins follow two rules. Reference lookups (product category, English
// name) are left joins: the row is kept with a null field. Joins that define
// a row (item to order, order to customer, customer to coordinates) are
// inner joins and drop unmatched rows. Misses of either kind are reported as
// JoinIntegrityWarnings; they never fail the run.
package aggregate

import (
	"cmp"
	"math"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/paveg/olist-eda/internal/table"
)

// Join labels used in warnings.
const (
	JoinItemProduct        = "order_items.product_id -> products"
	JoinProductTranslation = "products.product_category_name -> category_translation"
	JoinOrderCustomer      = "orders.customer_id -> customers"
	JoinCustomerGeo        = "customers.customer_zip_code_prefix -> geolocation"
)

// SoldItems keeps the items whose order survived cleaning.
func SoldItems(items table.Table[model.OrderItem], orders table.Table[model.Order]) table.Table[model.OrderItem] {
	index := table.Index(orders, orderKey)
	return items.Filter(func(it model.OrderItem) bool {
		_, ok := index[it.OrderID]
		return ok
	})
}

// ProductPopularity counts items and averages price per product, attaching
// the local and English category names. Rows are sorted by count
// descending; equal counts keep the order in which products first appear.
func ProductPopularity(
	items table.Table[model.OrderItem],
	products table.Table[model.Product],
	translations table.Table[model.CategoryTranslation],
) (table.Table[model.ProductPopularity], []errors.JoinIntegrityWarning) {
	productIndex := table.Index(products, func(p model.Product) string { return p.ProductID })
	translationIndex := table.Index(translations, func(c model.CategoryTranslation) string { return c.CategoryName })

	missingProducts := newMissing(JoinItemProduct, "product_id")
	missingTranslations := newMissing(JoinProductTranslation, "product_category_name")

	groups := table.GroupBy(items, func(it model.OrderItem) string { return it.ProductID })
	rows := make([]model.ProductPopularity, 0, len(groups))
	for _, g := range groups {
		prices := make([]float64, len(g.Rows))
		for i, it := range g.Rows {
			prices[i] = it.Price
		}
		mean, _ := stats.Mean(prices) // groups are never empty

		row := model.ProductPopularity{
			ProductID: g.Key,
			Count:     int64(len(g.Rows)),
			AvgPrice:  math.RoundToEven(mean),
		}

		product, ok := table.Lookup(products, productIndex, g.Key)
		if !ok {
			missingProducts.add(g.Key)
		} else if name, ok := product.CategoryName.Get(); ok {
			row.CategoryName = model.Some(name)
			if tr, ok := table.Lookup(translations, translationIndex, name); ok {
				row.CategoryNameEnglish = model.Some(tr.CategoryNameEnglish)
			} else {
				missingTranslations.add(name)
			}
		}
		rows = append(rows, row)
	}

	sorted := table.From(rows).SortStable(func(a, b model.ProductPopularity) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return sorted, collect(missingProducts, missingTranslations)
}

// CategoryPopularity re-aggregates product popularity by English category.
// Products without one share a null bucket.
func CategoryPopularity(products table.Table[model.ProductPopularity]) table.Table[model.CategoryPopularity] {
	groups := table.GroupBy(products, func(p model.ProductPopularity) model.Null[string] {
		return p.CategoryNameEnglish
	})

	var total int64
	rows := make([]model.CategoryPopularity, len(groups))
	for i, g := range groups {
		var count int64
		for _, p := range g.Rows {
			count += p.Count
		}
		total += count
		rows[i] = model.CategoryPopularity{CategoryNameEnglish: g.Key, Count: count}
	}
	for i := range rows {
		rows[i].Percent = stats.Share(float64(rows[i].Count), float64(total))
	}

	return table.From(rows).SortStable(func(a, b model.CategoryPopularity) int {
		return cmp.Compare(b.Count, a.Count)
	})
}

// CustomerSpend sums item prices per order, then per customer, and attaches
// the customer's coordinates. Customers whose zip prefix has no geolocation
// are dropped, so every row is located. Rows follow the order in which
// customers first appear.
func CustomerSpend(
	items table.Table[model.OrderItem],
	orders table.Table[model.Order],
	customers table.Table[model.Customer],
	geos table.Table[model.Geolocation],
) (table.Table[model.CustomerSpend], []errors.JoinIntegrityWarning) {
	orderIndex := table.Index(orders, orderKey)
	customerIndex := table.Index(customers, func(c model.Customer) string { return c.CustomerID })
	geoIndex := table.Index(geos, func(g model.Geolocation) string { return g.ZipCodePrefix })

	missingCustomers := newMissing(JoinOrderCustomer, "customer_id")
	missingGeos := newMissing(JoinCustomerGeo, "customer_zip_code_prefix")

	type orderTotal struct {
		customerID string
		total      float64
	}
	var totals []orderTotal
	for _, g := range table.GroupBy(items, func(it model.OrderItem) string { return it.OrderID }) {
		order, ok := table.Lookup(orders, orderIndex, g.Key)
		if !ok {
			continue
		}
		var sum float64
		for _, it := range g.Rows {
			sum += it.Price
		}
		totals = append(totals, orderTotal{customerID: order.CustomerID, total: sum})
	}

	byCustomer := table.GroupBy(table.From(totals), func(o orderTotal) string { return o.customerID })
	rows := make([]model.CustomerSpend, 0, len(byCustomer))
	for _, g := range byCustomer {
		customer, ok := table.Lookup(customers, customerIndex, g.Key)
		if !ok {
			missingCustomers.add(g.Key)
			continue
		}
		geo, ok := table.Lookup(geos, geoIndex, customer.ZipCodePrefix)
		if !ok {
			missingGeos.add(customer.ZipCodePrefix)
			continue
		}

		var spent float64
		for _, o := range g.Rows {
			spent += o.total
		}
		rows = append(rows, model.CustomerSpend{
			CustomerID:       customer.CustomerID,
			CustomerUniqueID: customer.UniqueID,
			TotalSpent:       spent,
			ZipCodePrefix:    customer.ZipCodePrefix,
			City:             customer.City,
			State:            customer.State,
			Lat:              model.Some(geo.Lat),
			Lng:              model.Some(geo.Lng),
		})
	}

	return table.From(rows), collect(missingCustomers, missingGeos)
}

type regionKey struct {
	tier  model.SpendTier
	state string
	city  string
}

// RegionSpend groups tiered customers by (tier, state, city). Rows are sorted
// by total spend descending, then customer count descending.
func RegionSpend(spend table.Table[model.CustomerSpend]) table.Table[model.RegionSpend] {
	groups := table.GroupBy(spend, func(c model.CustomerSpend) regionKey {
		return regionKey{tier: c.SpentRate, state: c.State, city: c.City}
	})

	var totalSpent float64
	rows := make([]model.RegionSpend, len(groups))
	for i, g := range groups {
		var spent float64
		for _, c := range g.Rows {
			spent += c.TotalSpent
		}
		totalSpent += spent
		rows[i] = model.RegionSpend{
			SpentRate:     g.Key.tier,
			State:         g.Key.state,
			City:          g.Key.city,
			CustomerCount: int64(len(g.Rows)),
			TotalSpent:    spent,
		}
	}
	for i := range rows {
		rows[i].CustomerCountPercent = stats.Share(float64(rows[i].CustomerCount), float64(spend.Len()))
		rows[i].TotalSpentPercent = stats.Share(rows[i].TotalSpent, totalSpent)
	}

	return table.From(rows).SortStable(func(a, b model.RegionSpend) int {
		if c := cmp.Compare(b.TotalSpent, a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(b.CustomerCount, a.CustomerCount)
	})
}

// DailyOrderStats totals item prices and distinct orders per purchase day
// and broadcasts each month's totals onto its days. Rows are sorted by date.
func DailyOrderStats(items table.Table[model.OrderItem], orders table.Table[model.Order]) table.Table[model.DailyOrderStats] {
	orderIndex := table.Index(orders, orderKey)

	type dayKey struct {
		month string
		date  string
	}
	type dayLine struct {
		key     dayKey
		orderID string
		price   float64
	}

	var lines []dayLine
	for _, it := range items.All() {
		order, ok := table.Lookup(orders, orderIndex, it.OrderID)
		if !ok {
			continue
		}
		lines = append(lines, dayLine{
			key: dayKey{
				month: order.PurchasedAt.Format(model.MonthLayout),
				date:  order.PurchasedAt.Format(model.DateLayout),
			},
			orderID: it.OrderID,
			price:   it.Price,
		})
	}

	days := table.GroupBy(table.From(lines), func(l dayLine) dayKey { return l.key })

	rows := make([]model.DailyOrderStats, len(days))
	for i, g := range days {
		distinct := make(map[string]struct{}, len(g.Rows))
		var spent float64
		for _, l := range g.Rows {
			distinct[l.orderID] = struct{}{}
			spent += l.price
		}
		rows[i] = model.DailyOrderStats{
			Date:       g.Key.date,
			Month:      g.Key.month,
			TotalOrder: int64(len(distinct)),
			TotalSpent: spent,
		}
	}

	daily := table.From(rows)
	type monthTotal struct {
		orders int64
		spent  float64
	}
	monthly := make(map[string]monthTotal)
	for _, g := range table.GroupBy(daily, func(d model.DailyOrderStats) string { return d.Month }) {
		var total monthTotal
		for _, d := range g.Rows {
			total.orders += d.TotalOrder
			total.spent += d.TotalSpent
		}
		monthly[g.Key] = total
	}

	return table.Map(daily, func(d model.DailyOrderStats) model.DailyOrderStats {
		d.TotalOrderMonthly = monthly[d.Month].orders
		d.TotalSpentMonthly = monthly[d.Month].spent
		return d
	}).SortStable(func(a, b model.DailyOrderStats) int {
		return cmp.Compare(a.Date, b.Date)
	})
}

func orderKey(o model.Order) string {
	return o.OrderID
}

// missing accumulates unmatched keys for one join
type missing struct {
	join, key string
	count     int
	example   string
	seen      map[string]struct{}
}

func newMissing(join, key string) *missing {
	return &missing{join: join, key: key, seen: map[string]struct{}{}}
}

func (m *missing) add(value string) {
	if _, dup := m.seen[value]; dup {
		return
	}
	m.seen[value] = struct{}{}
	if m.count == 0 {
		m.example = value
	}
	m.count++
}

func collect(all ...*missing) []errors.JoinIntegrityWarning {
	var warnings []errors.JoinIntegrityWarning
	for _, m := range all {
		if m.count == 0 {
			continue
		}
		warnings = append(warnings, errors.JoinIntegrityWarning{
			Join:    m.join,
			Key:     m.key,
			Missing: m.count,
			Example: m.example,
		})
	}
	return warnings
}
