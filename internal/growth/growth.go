// Package growth splits monthly spend and orders into new and returning
// buyers and computes month-over-month changes.
package growth

import (
	"cmp"

	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/stats"
	"github.com/paveg/olist-eda/internal/table"
)

type orderLine struct {
	person string
	month  string
	spent  float64
}

type monthKey struct {
	month string
	kind  model.CustomerType
}

// Monthly builds the growth table. A buyer is identified by the customer's
// unique id, falling back to the per-order customer id. An order is "new"
// when placed in the buyer's first purchase month and "returning" after it.
// Orders without items are ignored.
//
// Growth compares a row with the previous row of the same customer type;
// the first row of each type, and any row whose previous value is zero,
// has null growth.
func Monthly(
	orders table.Table[model.Order],
	items table.Table[model.OrderItem],
	customers table.Table[model.Customer],
) table.Table[model.MonthlyGrowth] {
	customerIndex := table.Index(customers, func(c model.Customer) string { return c.CustomerID })
	orderIndex := table.Index(orders, func(o model.Order) string { return o.OrderID })

	var lines []orderLine
	for _, g := range table.GroupBy(items, func(it model.OrderItem) string { return it.OrderID }) {
		order, ok := table.Lookup(orders, orderIndex, g.Key)
		if !ok {
			continue
		}
		person := order.CustomerID
		if c, ok := table.Lookup(customers, customerIndex, order.CustomerID); ok {
			person = c.PersonKey()
		}
		var spent float64
		for _, it := range g.Rows {
			spent += it.Price
		}
		lines = append(lines, orderLine{
			person: person,
			month:  order.PurchasedAt.Format(model.MonthLayout),
			spent:  spent,
		})
	}

	firstMonth := make(map[string]string)
	for _, l := range lines {
		if first, ok := firstMonth[l.person]; !ok || l.month < first {
			firstMonth[l.person] = l.month
		}
	}

	groups := table.GroupBy(table.From(lines), func(l orderLine) monthKey {
		kind := model.CustomerReturning
		if l.month == firstMonth[l.person] {
			kind = model.CustomerNew
		}
		return monthKey{month: l.month, kind: kind}
	})

	type monthTotal struct {
		spent  float64
		orders int64
	}
	totals := make(map[string]monthTotal)
	rows := make([]model.MonthlyGrowth, len(groups))
	for i, g := range groups {
		var spent float64
		for _, l := range g.Rows {
			spent += l.spent
		}
		rows[i] = model.MonthlyGrowth{
			Month:        g.Key.month,
			CustomerType: g.Key.kind,
			TotalSpent:   spent,
			TotalOrder:   int64(len(g.Rows)),
		}
		t := totals[g.Key.month]
		t.spent += spent
		t.orders += int64(len(g.Rows))
		totals[g.Key.month] = t
	}

	sorted := table.From(rows).SortStable(func(a, b model.MonthlyGrowth) int {
		if c := cmp.Compare(a.Month, b.Month); c != 0 {
			return c
		}
		return cmp.Compare(typeRank(a.CustomerType), typeRank(b.CustomerType))
	})

	previous := make(map[model.CustomerType]model.MonthlyGrowth)
	return table.Map(sorted, func(r model.MonthlyGrowth) model.MonthlyGrowth {
		month := totals[r.Month]
		r.TotalSpentPct = stats.Share(r.TotalSpent, month.spent)
		r.TotalOrderPct = stats.Share(float64(r.TotalOrder), float64(month.orders))

		if prev, ok := previous[r.CustomerType]; ok {
			if v, ok := stats.PercentChange(prev.TotalSpent, r.TotalSpent); ok {
				r.SpentGrowthPct = model.Some(v)
			}
			if v, ok := stats.PercentChange(float64(prev.TotalOrder), float64(r.TotalOrder)); ok {
				r.OrderGrowthPct = model.Some(v)
			}
		}
		previous[r.CustomerType] = r
		return r
	})
}

func typeRank(t model.CustomerType) int {
	if t == model.CustomerNew {
		return 0
	}
	return 1
}
