package artifact

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/errors"
	dfio "github.com/paveg/olist-eda/internal/io"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/paveg/olist-eda/internal/table"
)

// column maps one field of a record type to a typed column. get reports
// false for null; set receives nil for null.
type column[T any] struct {
	name string
	typ  dfio.ColumnType
	get  func(T) (any, bool)
	set  func(*T, any) error
}

func stringCol[T any](name string, get func(T) string, set func(*T, string)) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.String,
		get:  func(r T) (any, bool) { return get(r), true },
		set: func(r *T, v any) error {
			s, _ := v.(string)
			set(r, s)
			return nil
		},
	}
}

func nullStringCol[T any](name string, get func(T) model.Null[string], set func(*T, model.Null[string])) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.String,
		get: func(r T) (any, bool) {
			v := get(r)
			return v.V, v.Valid
		},
		set: func(r *T, v any) error {
			if s, ok := v.(string); ok {
				set(r, model.Some(s))
			} else {
				set(r, model.None[string]())
			}
			return nil
		},
	}
}

func intCol[T any](name string, get func(T) int64, set func(*T, int64)) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.Int64,
		get:  func(r T) (any, bool) { return get(r), true },
		set: func(r *T, v any) error {
			n, _ := v.(int64)
			set(r, n)
			return nil
		},
	}
}

func floatCol[T any](name string, get func(T) float64, set func(*T, float64)) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.Float64,
		get:  func(r T) (any, bool) { return get(r), true },
		set: func(r *T, v any) error {
			f, _ := v.(float64)
			set(r, f)
			return nil
		},
	}
}

func nullFloatCol[T any](name string, get func(T) model.Null[float64], set func(*T, model.Null[float64])) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.Float64,
		get: func(r T) (any, bool) {
			v := get(r)
			return v.V, v.Valid
		},
		set: func(r *T, v any) error {
			if f, ok := v.(float64); ok {
				set(r, model.Some(f))
			} else {
				set(r, model.None[float64]())
			}
			return nil
		},
	}
}

func tierCol[T any](name string, get func(T) model.SpendTier, set func(*T, model.SpendTier)) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.String,
		get: func(r T) (any, bool) {
			tier := get(r)
			return string(tier), tier != model.TierUnassigned
		},
		set: func(r *T, v any) error {
			s, ok := v.(string)
			if !ok {
				set(r, model.TierUnassigned)
				return nil
			}
			tier, err := model.ParseSpendTier(s)
			if err != nil {
				return err
			}
			set(r, tier)
			return nil
		},
	}
}

func customerTypeCol[T any](name string, get func(T) model.CustomerType, set func(*T, model.CustomerType)) column[T] {
	return column[T]{
		name: name,
		typ:  dfio.String,
		get:  func(r T) (any, bool) { return string(get(r)), true },
		set: func(r *T, v any) error {
			s, _ := v.(string)
			switch kind := model.CustomerType(s); kind {
			case model.CustomerNew, model.CustomerReturning:
				set(r, kind)
				return nil
			default:
				return errors.NewInvalidInputError("decode", "unknown customer type "+strconv.Quote(s))
			}
		},
	}
}

// Schema is the column layout of one derived table.
type Schema struct {
	Names []string
	Types []dfio.ColumnType
}

// Fingerprint hashes the ordered name:type pairs.
func (s Schema) Fingerprint() string {
	var b strings.Builder
	for i, name := range s.Names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(s.Types[i].String())
		b.WriteByte('\n')
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

func schemaOf[T any](cols []column[T]) Schema {
	s := Schema{Names: make([]string, len(cols)), Types: make([]dfio.ColumnType, len(cols))}
	for i, c := range cols {
		s.Names[i] = c.name
		s.Types[i] = c.typ
	}
	return s
}

// encode converts records to a DataFrame with one series per column.
func encode[T any](cols []column[T], rows table.Table[T], mem memory.Allocator) (*dataframe.DataFrame, error) {
	n := rows.Len()
	list := make([]dataframe.ISeries, 0, len(cols))
	release := func() {
		for _, s := range list {
			s.Release()
		}
	}

	for _, c := range cols {
		valid := make([]bool, n)
		var (
			s   dataframe.ISeries
			err error
		)
		switch c.typ {
		case dfio.String:
			values := make([]string, n)
			for i, r := range rows.All() {
				v, ok := c.get(r)
				values[i], valid[i] = v.(string), ok
			}
			s, err = series.NewNullable(c.name, values, valid, mem)
		case dfio.Int64:
			values := make([]int64, n)
			for i, r := range rows.All() {
				v, ok := c.get(r)
				values[i], valid[i] = v.(int64), ok
			}
			s, err = series.NewNullable(c.name, values, valid, mem)
		case dfio.Float64:
			values := make([]float64, n)
			for i, r := range rows.All() {
				v, ok := c.get(r)
				values[i], valid[i] = v.(float64), ok
			}
			s, err = series.NewNullable(c.name, values, valid, mem)
		default:
			err = errors.NewUnsupportedTypeError("encode", c.typ.String())
		}
		if err != nil {
			release()
			return nil, err
		}
		list = append(list, s)
	}
	return dataframe.New(list...), nil
}

// decode rebuilds records from a DataFrame. The frame must carry exactly the
// expected columns in order.
func decode[T any](source string, cols []column[T], df *dataframe.DataFrame) (table.Table[T], error) {
	expected := schemaOf(cols)
	got := df.Columns()
	if len(got) != len(expected.Names) {
		return table.Table[T]{}, &errors.ParseError{
			Source:  source,
			Message: "column count " + strconv.Itoa(len(got)) + " does not match expected " + strconv.Itoa(len(expected.Names)),
		}
	}
	for i, name := range expected.Names {
		if got[i] != name {
			return table.Table[T]{}, &errors.ParseError{
				Source:  source,
				Column:  name,
				Message: "unexpected column " + strconv.Quote(got[i]),
			}
		}
	}

	if err := df.Validate(); err != nil {
		return table.Table[T]{}, &errors.ParseError{Source: source, Message: "ragged columns", Cause: err}
	}

	rows := make([]T, df.Len())
	for _, c := range cols {
		var at func(int) any
		var isNull func(int) bool
		switch c.typ {
		case dfio.String:
			s, err := dataframe.Typed[string](df, c.name)
			if err != nil {
				return table.Table[T]{}, schemaError(source, c.name, err)
			}
			at, isNull = func(i int) any { return s.Value(i) }, s.IsNull
		case dfio.Int64:
			s, err := dataframe.Typed[int64](df, c.name)
			if err != nil {
				return table.Table[T]{}, schemaError(source, c.name, err)
			}
			at, isNull = func(i int) any { return s.Value(i) }, s.IsNull
		case dfio.Float64:
			s, err := dataframe.Typed[float64](df, c.name)
			if err != nil {
				return table.Table[T]{}, schemaError(source, c.name, err)
			}
			at, isNull = func(i int) any { return s.Value(i) }, s.IsNull
		default:
			return table.Table[T]{}, errors.NewUnsupportedTypeError("decode", c.typ.String())
		}

		for i := range rows {
			var v any
			if !isNull(i) {
				v = at(i)
			}
			if err := c.set(&rows[i], v); err != nil {
				perr := errors.NewParseError(source, c.name, i+1, "", "invalid value")
				perr.Cause = err
				return table.Table[T]{}, perr
			}
		}
	}
	return table.From(rows), nil
}

func schemaError(source, column string, cause error) error {
	return &errors.ParseError{Source: source, Column: column, Message: "column type does not match", Cause: cause}
}

var productColumns = []column[model.ProductPopularity]{
	stringCol("product_id",
		func(r model.ProductPopularity) string { return r.ProductID },
		func(r *model.ProductPopularity, v string) { r.ProductID = v }),
	intCol("count",
		func(r model.ProductPopularity) int64 { return r.Count },
		func(r *model.ProductPopularity, v int64) { r.Count = v }),
	floatCol("avg_price",
		func(r model.ProductPopularity) float64 { return r.AvgPrice },
		func(r *model.ProductPopularity, v float64) { r.AvgPrice = v }),
	nullStringCol("product_category_name",
		func(r model.ProductPopularity) model.Null[string] { return r.CategoryName },
		func(r *model.ProductPopularity, v model.Null[string]) { r.CategoryName = v }),
	nullStringCol("product_category_name_english",
		func(r model.ProductPopularity) model.Null[string] { return r.CategoryNameEnglish },
		func(r *model.ProductPopularity, v model.Null[string]) { r.CategoryNameEnglish = v }),
}

var categoryColumns = []column[model.CategoryPopularity]{
	nullStringCol("product_category_name_english",
		func(r model.CategoryPopularity) model.Null[string] { return r.CategoryNameEnglish },
		func(r *model.CategoryPopularity, v model.Null[string]) { r.CategoryNameEnglish = v }),
	intCol("count",
		func(r model.CategoryPopularity) int64 { return r.Count },
		func(r *model.CategoryPopularity, v int64) { r.Count = v }),
	floatCol("percent",
		func(r model.CategoryPopularity) float64 { return r.Percent },
		func(r *model.CategoryPopularity, v float64) { r.Percent = v }),
}

var customerColumns = []column[model.CustomerSpend]{
	stringCol("customer_id",
		func(r model.CustomerSpend) string { return r.CustomerID },
		func(r *model.CustomerSpend, v string) { r.CustomerID = v }),
	stringCol("customer_unique_id",
		func(r model.CustomerSpend) string { return r.CustomerUniqueID },
		func(r *model.CustomerSpend, v string) { r.CustomerUniqueID = v }),
	floatCol("total_spent",
		func(r model.CustomerSpend) float64 { return r.TotalSpent },
		func(r *model.CustomerSpend, v float64) { r.TotalSpent = v }),
	tierCol("spent_rate",
		func(r model.CustomerSpend) model.SpendTier { return r.SpentRate },
		func(r *model.CustomerSpend, v model.SpendTier) { r.SpentRate = v }),
	stringCol("customer_zip_code_prefix",
		func(r model.CustomerSpend) string { return r.ZipCodePrefix },
		func(r *model.CustomerSpend, v string) { r.ZipCodePrefix = v }),
	stringCol("customer_city",
		func(r model.CustomerSpend) string { return r.City },
		func(r *model.CustomerSpend, v string) { r.City = v }),
	stringCol("customer_state",
		func(r model.CustomerSpend) string { return r.State },
		func(r *model.CustomerSpend, v string) { r.State = v }),
	nullFloatCol("geolocation_lat",
		func(r model.CustomerSpend) model.Null[float64] { return r.Lat },
		func(r *model.CustomerSpend, v model.Null[float64]) { r.Lat = v }),
	nullFloatCol("geolocation_lng",
		func(r model.CustomerSpend) model.Null[float64] { return r.Lng },
		func(r *model.CustomerSpend, v model.Null[float64]) { r.Lng = v }),
}

var regionColumns = []column[model.RegionSpend]{
	tierCol("spent_rate",
		func(r model.RegionSpend) model.SpendTier { return r.SpentRate },
		func(r *model.RegionSpend, v model.SpendTier) { r.SpentRate = v }),
	stringCol("customer_state",
		func(r model.RegionSpend) string { return r.State },
		func(r *model.RegionSpend, v string) { r.State = v }),
	stringCol("customer_city",
		func(r model.RegionSpend) string { return r.City },
		func(r *model.RegionSpend, v string) { r.City = v }),
	intCol("customer_count",
		func(r model.RegionSpend) int64 { return r.CustomerCount },
		func(r *model.RegionSpend, v int64) { r.CustomerCount = v }),
	floatCol("total_spent",
		func(r model.RegionSpend) float64 { return r.TotalSpent },
		func(r *model.RegionSpend, v float64) { r.TotalSpent = v }),
	floatCol("customer_count_percent",
		func(r model.RegionSpend) float64 { return r.CustomerCountPercent },
		func(r *model.RegionSpend, v float64) { r.CustomerCountPercent = v }),
	floatCol("total_spent_percent",
		func(r model.RegionSpend) float64 { return r.TotalSpentPercent },
		func(r *model.RegionSpend, v float64) { r.TotalSpentPercent = v }),
}

var dailyColumns = []column[model.DailyOrderStats]{
	stringCol("date",
		func(r model.DailyOrderStats) string { return r.Date },
		func(r *model.DailyOrderStats, v string) { r.Date = v }),
	stringCol("month",
		func(r model.DailyOrderStats) string { return r.Month },
		func(r *model.DailyOrderStats, v string) { r.Month = v }),
	intCol("total_order",
		func(r model.DailyOrderStats) int64 { return r.TotalOrder },
		func(r *model.DailyOrderStats, v int64) { r.TotalOrder = v }),
	floatCol("total_spent",
		func(r model.DailyOrderStats) float64 { return r.TotalSpent },
		func(r *model.DailyOrderStats, v float64) { r.TotalSpent = v }),
	intCol("total_order_monthly",
		func(r model.DailyOrderStats) int64 { return r.TotalOrderMonthly },
		func(r *model.DailyOrderStats, v int64) { r.TotalOrderMonthly = v }),
	floatCol("total_spent_monthly",
		func(r model.DailyOrderStats) float64 { return r.TotalSpentMonthly },
		func(r *model.DailyOrderStats, v float64) { r.TotalSpentMonthly = v }),
}

var growthColumns = []column[model.MonthlyGrowth]{
	stringCol("month",
		func(r model.MonthlyGrowth) string { return r.Month },
		func(r *model.MonthlyGrowth, v string) { r.Month = v }),
	customerTypeCol("customer_type",
		func(r model.MonthlyGrowth) model.CustomerType { return r.CustomerType },
		func(r *model.MonthlyGrowth, v model.CustomerType) { r.CustomerType = v }),
	floatCol("total_spent",
		func(r model.MonthlyGrowth) float64 { return r.TotalSpent },
		func(r *model.MonthlyGrowth, v float64) { r.TotalSpent = v }),
	intCol("total_order",
		func(r model.MonthlyGrowth) int64 { return r.TotalOrder },
		func(r *model.MonthlyGrowth, v int64) { r.TotalOrder = v }),
	floatCol("total_spent_pct",
		func(r model.MonthlyGrowth) float64 { return r.TotalSpentPct },
		func(r *model.MonthlyGrowth, v float64) { r.TotalSpentPct = v }),
	floatCol("total_order_pct",
		func(r model.MonthlyGrowth) float64 { return r.TotalOrderPct },
		func(r *model.MonthlyGrowth, v float64) { r.TotalOrderPct = v }),
	nullFloatCol("spent_growth_pct",
		func(r model.MonthlyGrowth) model.Null[float64] { return r.SpentGrowthPct },
		func(r *model.MonthlyGrowth, v model.Null[float64]) { r.SpentGrowthPct = v }),
	nullFloatCol("order_growth_pct",
		func(r model.MonthlyGrowth) model.Null[float64] { return r.OrderGrowthPct },
		func(r *model.MonthlyGrowth, v model.Null[float64]) { r.OrderGrowthPct = v }),
}
