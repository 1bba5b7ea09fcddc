package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/series"
)

// Compression resolves a codec name. Unknown names fall back to snappy.
func Compression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	// Parquet needs random access; buffer the stream
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		BatchSize: int64(r.options.BatchSize),
	}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer tbl.Release()

	return r.arrowTableToDataFrame(tbl)
}

// arrowTableToDataFrame converts an Arrow table to a DataFrame, keeping
// column order and nulls.
func (r *ParquetReader) arrowTableToDataFrame(tbl arrow.Table) (*dataframe.DataFrame, error) {
	schema := tbl.Schema()
	seriesList := make([]dataframe.ISeries, 0, tbl.NumCols())

	for i := range int(tbl.NumCols()) {
		field := schema.Field(i)
		s, err := r.columnToSeries(field, tbl.Column(i))
		if err != nil {
			for _, created := range seriesList {
				created.Release()
			}
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// columnToSeries flattens a chunked column into a single-array series
func (r *ParquetReader) columnToSeries(field arrow.Field, column *arrow.Column) (dataframe.ISeries, error) {
	chunks := column.Data().Chunks()

	var arr arrow.Array
	switch len(chunks) {
	case 0:
		b := array.NewBuilder(r.mem, field.Type)
		arr = b.NewArray()
		b.Release()
	case 1:
		arr = chunks[0]
		arr.Retain()
	default:
		merged, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, err
		}
		arr = merged
	}
	defer arr.Release()

	//nolint:exhaustive // Only the column types the artifact store writes
	switch field.Type.ID() {
	case arrow.INT64:
		return series.FromArray[int64](field.Name, arr)
	case arrow.FLOAT64:
		return series.FromArray[float64](field.Name, arr)
	case arrow.STRING:
		return series.FromArray[string](field.Name, arr)
	case arrow.BOOL:
		return series.FromArray[bool](field.Name, arr)
	default:
		return nil, fmt.Errorf("unsupported Arrow type: %s", field.Type)
	}
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	tbl := w.dataFrameToArrowTable(df)
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(Compression(w.options.Compression)),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
		parquet.WithAllocator(w.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(w.mem))

	writer, err := pqarrow.NewFileWriter(tbl.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	rowGroup := max(int64(df.Len()), 1)
	if err := writer.WriteTable(tbl, rowGroup); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// dataFrameToArrowTable wraps the DataFrame's arrays in an Arrow table.
// Every field is nullable so optional columns round-trip.
func (w *ParquetWriter) dataFrameToArrowTable(df *dataframe.DataFrame) arrow.Table {
	fields := make([]arrow.Field, 0, df.Width())
	columns := make([]arrow.Column, 0, df.Width())

	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		arr := col.Array()

		field := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()

		column := arrow.NewColumn(field, chunked)
		chunked.Release()

		fields = append(fields, field)
		columns = append(columns, *column)
	}

	schema := arrow.NewSchema(fields, nil)
	tbl := array.NewTable(schema, columns, int64(df.Len()))
	for i := range columns {
		columns[i].Release()
	}
	return tbl
}
