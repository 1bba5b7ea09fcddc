package io

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/olist-eda/internal/dataframe"
)

// Write writes the DataFrame as JSON. Keys follow column order and nulls
// are written as JSON null.
func (w *JSONWriter) Write(df *dataframe.DataFrame) error {
	buf := bufio.NewWriter(w.writer)

	switch w.format {
	case JSONArray:
		if err := w.writeRecords(buf, df, "[", ",", "]\n"); err != nil {
			return err
		}
	case JSONLines:
		if err := w.writeRecords(buf, df, "", "\n", "\n"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported JSON format: %d", w.format)
	}

	return buf.Flush()
}

func (w *JSONWriter) writeRecords(buf *bufio.Writer, df *dataframe.DataFrame, open, sep, closing string) error {
	names := df.Columns()
	keys := make([][]byte, len(names))
	columns := make([]dataframe.ISeries, len(names))
	for i, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = key
		columns[i], _ = df.Column(name)
	}

	if _, err := buf.WriteString(open); err != nil {
		return err
	}
	for row := 0; row < df.Len(); row++ {
		if row > 0 {
			if _, err := buf.WriteString(sep); err != nil {
				return err
			}
		}
		if err := buf.WriteByte('{'); err != nil {
			return err
		}
		for i, column := range columns {
			if i > 0 {
				_ = buf.WriteByte(',')
			}
			_, _ = buf.Write(keys[i])
			_ = buf.WriteByte(':')

			value, err := json.Marshal(seriesValue(column, row))
			if err != nil {
				return fmt.Errorf("encoding column %s row %d: %w", names[i], row, err)
			}
			if _, err := buf.Write(value); err != nil {
				return err
			}
		}
		if err := buf.WriteByte('}'); err != nil {
			return err
		}
	}
	if df.Len() == 0 && closing == "\n" {
		return nil
	}
	_, err := buf.WriteString(closing)
	return err
}

// seriesValue extracts a JSON-encodable value; nulls become nil.
func seriesValue(s dataframe.ISeries, index int) any {
	if s.IsNull(index) {
		return nil
	}
	arr := s.Array()
	defer arr.Release()

	switch typed := arr.(type) {
	case *array.Int64:
		return typed.Value(index)
	case *array.Float64:
		return typed.Value(index)
	case *array.Boolean:
		return typed.Value(index)
	case *array.String:
		return typed.Value(index)
	default:
		return s.GetAsString(index)
	}
}
