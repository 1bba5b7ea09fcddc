package io_test

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/io"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWriter(t *testing.T) {
	mem := memory.NewGoAllocator()

	growth, err := series.NewNullable("growth", []float64{0, 12.5}, []bool{false, true}, mem)
	require.NoError(t, err)
	df := dataframe.New(
		series.New("month", []string{"2017-01", "2017-02"}, mem),
		series.New("orders", []int64{3, 4}, mem),
		growth,
	)
	defer df.Release()

	tests := []struct {
		name     string
		format   io.JSONFormat
		expected string
	}{
		{
			name:     "array",
			format:   io.JSONArray,
			expected: `[{"month":"2017-01","orders":3,"growth":null},{"month":"2017-02","orders":4,"growth":12.5}]` + "\n",
		},
		{
			name:   "lines",
			format: io.JSONLines,
			expected: `{"month":"2017-01","orders":3,"growth":null}` + "\n" +
				`{"month":"2017-02","orders":4,"growth":12.5}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, io.NewJSONWriter(&buf, tt.format).Write(df))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, io.NewJSONWriter(&buf, io.JSONArray).Write(dataframe.New()))
	assert.Equal(t, "[]\n", buf.String())
}
