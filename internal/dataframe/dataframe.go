// Package dataframe provides the columnar interchange format used when tables
// cross an I/O boundary (source files, persisted artifacts, exports).
package dataframe

import (
	"fmt"
	"strings"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/paveg/olist-eda/internal/validation"
)

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		columns[name] = s
		order = append(order, name)
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows (assumes all columns have same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Validate checks that every column has as many rows as the first one.
func (df *DataFrame) Validate() error {
	rows := df.Len()
	for _, name := range df.order {
		if err := validation.ValidateLength(rows, df.columns[name].Len(), "Validate", "column "+name); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrMismatchedLength, err)
		}
	}
	return nil
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		series := df.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, series.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases every column's Arrow memory
func (df *DataFrame) Release() {
	for _, s := range df.columns {
		s.Release()
	}
}

// Typed returns the named column as a concrete Series[T].
func Typed[T any](df *DataFrame, name string) (*series.Series[T], error) {
	col, exists := df.Column(name)
	if !exists {
		return nil, errors.NewColumnNotFoundError("Typed", name)
	}
	typed, ok := col.(*series.Series[T])
	if !ok {
		var zero T
		return nil, errors.NewValidationError("Typed", name,
			fmt.Sprintf("column has type %s, requested %T", col.DataType(), zero))
	}
	return typed, nil
}
