package io

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/series"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	if r.options.Delimiter != 0 {
		csvReader.Comma = r.options.Delimiter
	}
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, &errors.ParseError{
			Source:  r.options.SourceName,
			Message: "malformed CSV",
			Cause:   err,
		}
	}

	if len(records) == 0 {
		return dataframe.New(), nil
	}

	var headers []string
	var dataRows [][]string

	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		// Generate default column names
		numCols := len(records[0])
		headers = make([]string, numCols)
		for i := 0; i < numCols; i++ {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		dataRows = records
	}
	// Strip a UTF-8 byte order mark left by spreadsheet exports
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	// Transpose data to work with columns
	columns := make([][]string, len(headers))
	for i := range headers {
		columns[i] = make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				columns[i][j] = row[i]
			}
		}
	}

	seriesList := make([]dataframe.ISeries, 0, len(headers))
	for i, header := range headers {
		s, err := r.createSeries(header, columns[i])
		if err != nil {
			for _, created := range seriesList {
				created.Release()
			}
			return nil, err
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// createSeries builds a column from its declared type, or infers one when
// the column is undeclared and inference is enabled.
func (r *CSVReader) createSeries(name string, data []string) (dataframe.ISeries, error) {
	if declared, ok := r.options.ColumnTypes[name]; ok {
		return r.parseDeclared(name, declared, data)
	}
	if !r.options.InferTypes || len(data) == 0 {
		return series.NewSafe(name, data, r.mem)
	}
	return r.parseDeclared(name, inferDataType(data), data)
}

// inferDataType determines the most specific type that parses every non-empty value
func inferDataType(data []string) ColumnType {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	switch {
	case !hasNonEmptyValue:
		return String
	case canBeBool:
		return Bool
	case canBeInt:
		return Int64
	case canBeFloat:
		return Float64
	default:
		return String
	}
}

// parseDeclared converts text cells to a typed column. Empty cells are nulls.
func (r *CSVReader) parseDeclared(name string, typ ColumnType, data []string) (dataframe.ISeries, error) {
	valid := make([]bool, len(data))
	for i, value := range data {
		valid[i] = value != ""
	}

	switch typ {
	case String:
		return series.NewNullable(name, data, valid, r.mem)
	case Int64:
		values := make([]int64, len(data))
		for i, value := range data {
			if !valid[i] {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return nil, r.parseError(name, i, value, "not an integer", err)
			}
			values[i] = v
		}
		return series.NewNullable(name, values, valid, r.mem)
	case Float64:
		values := make([]float64, len(data))
		for i, value := range data {
			if !valid[i] {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return nil, r.parseError(name, i, value, "not a number", err)
			}
			values[i] = v
		}
		return series.NewNullable(name, values, valid, r.mem)
	case Bool:
		values := make([]bool, len(data))
		for i, value := range data {
			if !valid[i] {
				continue
			}
			v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(value)))
			if err != nil {
				return nil, r.parseError(name, i, value, "not a boolean", err)
			}
			values[i] = v
		}
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return nil, errors.NewUnsupportedTypeError("Read", typ.String())
	}
}

func (r *CSVReader) parseError(column string, index int, value, message string, cause error) error {
	err := errors.NewParseError(r.options.SourceName, column, index+1, value, message)
	err.Cause = cause
	return err
}

// Write writes the DataFrame to CSV format
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	if w.options.Delimiter != 0 {
		csvWriter.Comma = w.options.Delimiter
	}

	if w.options.Header {
		if err := csvWriter.Write(df.Columns()); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	columns := make([]dataframe.ISeries, 0, df.Width())
	for _, name := range df.Columns() {
		column, _ := df.Column(name)
		columns = append(columns, column)
	}

	row := make([]string, len(columns))
	for i := 0; i < df.Len(); i++ {
		for j, column := range columns {
			row[j] = column.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
