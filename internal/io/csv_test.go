package io_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/io"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVReader(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("infers types by default", func(t *testing.T) {
		csvData := `name,age,score,active
Alice,25,1.5,true
Bob,30,2,false`

		reader := io.NewCSVReader(strings.NewReader(csvData), io.DefaultCSVOptions(), mem)
		df, err := reader.Read()
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, 2, df.Len())
		assert.Equal(t, []string{"name", "age", "score", "active"}, df.Columns())

		ageCol, exists := df.Column("age")
		require.True(t, exists)
		ageArray := ageCol.Array()
		defer ageArray.Release()
		assert.Equal(t, int64(25), ageArray.(*array.Int64).Value(0))

		scoreCol, _ := df.Column("score")
		assert.Equal(t, "float64", scoreCol.DataType().Name())

		activeCol, _ := df.Column("active")
		assert.Equal(t, "bool", activeCol.DataType().Name())
	})

	t.Run("keeps text verbatim without inference", func(t *testing.T) {
		csvData := "zip,city\n01037,sao paulo\n"

		options := io.DefaultCSVOptions()
		options.InferTypes = false
		df, err := io.NewCSVReader(strings.NewReader(csvData), options, mem).Read()
		require.NoError(t, err)
		defer df.Release()

		zip, err := dataframe.Typed[string](df, "zip")
		require.NoError(t, err)
		assert.Equal(t, "01037", zip.Value(0))
	})

	t.Run("declared columns turn empty cells into nulls", func(t *testing.T) {
		csvData := "order_id,price,approved_at\no1,10.5,2017-01-01 10:00:00\no2,,\n"

		options := io.DefaultCSVOptions()
		options.InferTypes = false
		options.ColumnTypes = map[string]io.ColumnType{
			"price":       io.Float64,
			"approved_at": io.String,
		}
		df, err := io.NewCSVReader(strings.NewReader(csvData), options, mem).Read()
		require.NoError(t, err)
		defer df.Release()

		price, err := dataframe.Typed[float64](df, "price")
		require.NoError(t, err)
		assert.InDelta(t, 10.5, price.Value(0), 0)
		assert.True(t, price.IsNull(1))

		approved, err := dataframe.Typed[string](df, "approved_at")
		require.NoError(t, err)
		assert.False(t, approved.IsNull(0))
		assert.True(t, approved.IsNull(1))
	})

	t.Run("unparseable declared value is a ParseError", func(t *testing.T) {
		csvData := "order_id,price\no1,10\no2,ten\n"

		options := io.DefaultCSVOptions()
		options.SourceName = "order_items"
		options.ColumnTypes = map[string]io.ColumnType{"price": io.Float64}
		_, err := io.NewCSVReader(strings.NewReader(csvData), options, mem).Read()
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrParse)

		var parseErr *errors.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "order_items", parseErr.Source)
		assert.Equal(t, "price", parseErr.Column)
		assert.Equal(t, 2, parseErr.Row)
		assert.Equal(t, "ten", parseErr.Value)
	})

	t.Run("reads CSV without headers", func(t *testing.T) {
		options := io.DefaultCSVOptions()
		options.Header = false
		df, err := io.NewCSVReader(strings.NewReader("a,1\nb,2\n"), options, mem).Read()
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, []string{"column_0", "column_1"}, df.Columns())
		assert.Equal(t, 2, df.Len())
	})

	t.Run("header only yields typed empty columns", func(t *testing.T) {
		options := io.DefaultCSVOptions()
		options.ColumnTypes = map[string]io.ColumnType{"price": io.Float64}
		df, err := io.NewCSVReader(strings.NewReader("order_id,price\n"), options, mem).Read()
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, 0, df.Len())
		assert.Equal(t, []string{"order_id", "price"}, df.Columns())
	})

	t.Run("strips byte order mark", func(t *testing.T) {
		df, err := io.NewCSVReader(strings.NewReader("\ufeffid\nx\n"), io.DefaultCSVOptions(), mem).Read()
		require.NoError(t, err)
		defer df.Release()
		assert.True(t, df.HasColumn("id"))
	})

	t.Run("custom delimiter", func(t *testing.T) {
		options := io.DefaultCSVOptions()
		options.Delimiter = ';'
		df, err := io.NewCSVReader(strings.NewReader("a;b\n1;2\n"), options, mem).Read()
		require.NoError(t, err)
		defer df.Release()
		assert.Equal(t, 2, df.Width())
	})
}

func TestCSVWriter(t *testing.T) {
	mem := memory.NewGoAllocator()

	ids := series.New("id", []string{"a", "b"}, mem)
	values, err := series.NewNullable("value", []float64{1.25, 0}, []bool{true, false}, mem)
	require.NoError(t, err)
	counts := series.New("count", []int64{3, 4}, mem)
	df := dataframe.New(ids, values, counts)
	defer df.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(df))

	assert.Equal(t, "id,value,count\na,1.25,3\nb,,4\n", buf.String())

	t.Run("round trip keeps nulls", func(t *testing.T) {
		options := io.DefaultCSVOptions()
		options.ColumnTypes = map[string]io.ColumnType{"value": io.Float64}
		back, err := io.NewCSVReader(strings.NewReader(buf.String()), options, mem).Read()
		require.NoError(t, err)
		defer back.Release()

		value, err := dataframe.Typed[float64](back, "value")
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false}, value.Valid())
	})
}
