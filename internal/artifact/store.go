// Package artifact persists the derived tables of a run, with a manifest that
// lets a later run reuse them instead of recomputing.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/errors"
	dfio "github.com/paveg/olist-eda/internal/io"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/version"
	"go.uber.org/zap"
)

// Format is the on-disk encoding of artifact tables.
type Format string

// Supported formats. JSON is an export format only and cannot be loaded back.
const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatParquet, FormatJSON:
		return f, nil
	default:
		return "", errors.NewInvalidInputError("ParseFormat", fmt.Sprintf("unknown artifact format %q", s))
	}
}

// ManifestFile is the name of the manifest inside the artifact directory.
const ManifestFile = "manifest.json"

const manifestVersion = 1

// Table names on disk.
const (
	TableProducts   = "tabel_produk"
	TableCategories = "tabel_kategori"
	TableCustomers  = "tabel_pelanggan"
	TableSample     = "tabel_sampel_koordinat"
	TableRegions    = "tabel_wilayah"
	TableDaily      = "tabel_order_timeseries"
	TableGrowth     = "tabel_growth_bulanan"
)

// TableEntry describes one persisted table.
type TableEntry struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Rows        int      `json:"rows"`
	Columns     []string `json:"columns"`
	Fingerprint string   `json:"fingerprint"`
}

// Manifest records what a Save wrote.
type Manifest struct {
	Version     int               `json:"version"`
	Generator   string            `json:"generator"`
	Format      Format            `json:"format"`
	Compression string            `json:"compression,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Tables      []TableEntry      `json:"tables"`
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// codec moves one Result table to and from a DataFrame.
type codec interface {
	name() string
	schema() Schema
	rows(result *model.Result) int
	encode(result *model.Result, mem memory.Allocator) (*dataframe.DataFrame, error)
	decode(df *dataframe.DataFrame, result *model.Result) error
}

type tableCodec[T any] struct {
	table string
	cols  []column[T]
	get   func(*model.Result) table.Table[T]
	put   func(*model.Result, table.Table[T])
}

func (c tableCodec[T]) name() string { return c.table }

func (c tableCodec[T]) schema() Schema { return schemaOf(c.cols) }

func (c tableCodec[T]) rows(result *model.Result) int { return c.get(result).Len() }

func (c tableCodec[T]) encode(result *model.Result, mem memory.Allocator) (*dataframe.DataFrame, error) {
	return encode(c.cols, c.get(result), mem)
}

func (c tableCodec[T]) decode(df *dataframe.DataFrame, result *model.Result) error {
	rows, err := decode(c.table, c.cols, df)
	if err != nil {
		return err
	}
	c.put(result, rows)
	return nil
}

var codecs = []codec{
	tableCodec[model.ProductPopularity]{
		table: TableProducts, cols: productColumns,
		get: func(r *model.Result) table.Table[model.ProductPopularity] { return r.Products },
		put: func(r *model.Result, t table.Table[model.ProductPopularity]) { r.Products = t },
	},
	tableCodec[model.CategoryPopularity]{
		table: TableCategories, cols: categoryColumns,
		get: func(r *model.Result) table.Table[model.CategoryPopularity] { return r.Categories },
		put: func(r *model.Result, t table.Table[model.CategoryPopularity]) { r.Categories = t },
	},
	tableCodec[model.CustomerSpend]{
		table: TableCustomers, cols: customerColumns,
		get: func(r *model.Result) table.Table[model.CustomerSpend] { return r.Customers },
		put: func(r *model.Result, t table.Table[model.CustomerSpend]) { r.Customers = t },
	},
	tableCodec[model.CustomerSpend]{
		table: TableSample, cols: customerColumns,
		get: func(r *model.Result) table.Table[model.CustomerSpend] { return r.Sample },
		put: func(r *model.Result, t table.Table[model.CustomerSpend]) { r.Sample = t },
	},
	tableCodec[model.RegionSpend]{
		table: TableRegions, cols: regionColumns,
		get: func(r *model.Result) table.Table[model.RegionSpend] { return r.Regions },
		put: func(r *model.Result, t table.Table[model.RegionSpend]) { r.Regions = t },
	},
	tableCodec[model.DailyOrderStats]{
		table: TableDaily, cols: dailyColumns,
		get: func(r *model.Result) table.Table[model.DailyOrderStats] { return r.Daily },
		put: func(r *model.Result, t table.Table[model.DailyOrderStats]) { r.Daily = t },
	},
	tableCodec[model.MonthlyGrowth]{
		table: TableGrowth, cols: growthColumns,
		get: func(r *model.Result) table.Table[model.MonthlyGrowth] { return r.Growth },
		put: func(r *model.Result, t table.Table[model.MonthlyGrowth]) { r.Growth = t },
	},
}

// Store reads and writes a Result under one directory.
type Store struct {
	dir         string
	format      Format
	compression string
	mem         memory.Allocator
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithCompression sets the Parquet codec
func WithCompression(name string) Option {
	return func(s *Store) { s.compression = name }
}

// WithAllocator sets the Arrow allocator used while encoding and decoding
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Store) { s.mem = mem }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store rooted at dir.
func New(dir string, format Format, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.NewInvalidInputError("artifact.New", "directory is required")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	s := &Store{
		dir:         dir,
		format:      format,
		compression: dfio.DefaultParquetOptions().Compression,
		mem:         memory.NewGoAllocator(),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the artifact directory
func (s *Store) Dir() string { return s.dir }

// Exists reports whether a manifest is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, ManifestFile))
	return err == nil
}

// Save writes every table and then the manifest. The manifest is written
// last so an interrupted save is never mistaken for a complete one.
func (s *Store) Save(result *model.Result) (*Manifest, error) {
	if result == nil {
		return nil, errors.NewInvalidInputError("Save", "result is nil")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	_ = os.Remove(filepath.Join(s.dir, ManifestFile))

	manifest := &Manifest{
		Version:     manifestVersion,
		Generator:   version.Generator(),
		Format:      s.format,
		CreatedAt:   s.now().UTC(),
		Diagnostics: result.Diagnostics,
	}
	if s.format == FormatParquet {
		manifest.Compression = s.compression
	}

	for _, c := range codecs {
		schema := c.schema()
		entry := TableEntry{
			Name:        c.name(),
			File:        c.name() + "." + string(s.format),
			Rows:        c.rows(result),
			Columns:     schema.Names,
			Fingerprint: schema.Fingerprint(),
		}
		if err := s.writeTable(c, result, entry.File); err != nil {
			return nil, fmt.Errorf("writing %s: %w", entry.Name, err)
		}
		s.logger.Debug("artifact written", zap.String("table", entry.Name), zap.Int("rows", entry.Rows))
		manifest.Tables = append(manifest.Tables, entry)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	s.logger.Info("artifacts saved",
		zap.String("dir", s.dir),
		zap.String("format", string(s.format)),
		zap.Int("tables", len(manifest.Tables)))
	return manifest, nil
}

func (s *Store) writeTable(c codec, result *model.Result, file string) (err error) {
	df, err := c.encode(result, s.mem)
	if err != nil {
		return err
	}
	defer df.Release()

	f, err := os.Create(filepath.Join(s.dir, file))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var writer dfio.DataWriter
	switch s.format {
	case FormatCSV:
		writer = dfio.NewCSVWriter(f, dfio.DefaultCSVOptions())
	case FormatParquet:
		opts := dfio.DefaultParquetOptions()
		opts.Compression = s.compression
		writer = dfio.NewParquetWriter(f, opts)
	case FormatJSON:
		writer = dfio.NewJSONWriter(f, dfio.JSONArray)
	}
	return writer.Write(df)
}

// ReadManifest loads the manifest without touching the tables.
func (s *Store) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &errors.ParseError{Source: ManifestFile, Message: "invalid manifest", Cause: err}
	}
	if manifest.Version != manifestVersion {
		return nil, &errors.ParseError{
			Source:  ManifestFile,
			Message: fmt.Sprintf("unsupported manifest version %d", manifest.Version),
		}
	}
	return &manifest, nil
}

// Load reads a previously saved Result. Tables whose schema fingerprint or
// row count disagrees with the manifest are rejected with a ParseError.
func (s *Store) Load() (*model.Result, error) {
	manifest, err := s.ReadManifest()
	if err != nil {
		return nil, err
	}
	if manifest.Format == FormatJSON {
		return nil, errors.NewInvalidInputError("Load", "json artifacts are export-only")
	}

	entries := make(map[string]TableEntry, len(manifest.Tables))
	for _, e := range manifest.Tables {
		entries[e.Name] = e
	}

	result := &model.Result{Diagnostics: manifest.Diagnostics}
	for _, c := range codecs {
		entry, ok := entries[c.name()]
		if !ok {
			return nil, &errors.ParseError{Source: ManifestFile, Message: "missing table " + c.name()}
		}
		if fp := c.schema().Fingerprint(); entry.Fingerprint != fp {
			return nil, &errors.ParseError{
				Source:  entry.Name,
				Message: fmt.Sprintf("schema fingerprint %s does not match expected %s", entry.Fingerprint, fp),
			}
		}
		if err := s.readTable(c, manifest, entry, result); err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name, err)
		}
		if got := c.rows(result); got != entry.Rows {
			return nil, &errors.ParseError{
				Source:  entry.Name,
				Message: fmt.Sprintf("read %d rows, manifest records %d", got, entry.Rows),
			}
		}
	}
	s.logger.Info("artifacts loaded", zap.String("dir", s.dir), zap.Time("created_at", manifest.CreatedAt))
	return result, nil
}

func (s *Store) readTable(c codec, manifest *Manifest, entry TableEntry, result *model.Result) error {
	f, err := os.Open(filepath.Join(s.dir, entry.File))
	if err != nil {
		return err
	}
	defer f.Close()

	var reader dfio.DataReader
	switch manifest.Format {
	case FormatCSV:
		schema := c.schema()
		opts := dfio.DefaultCSVOptions()
		opts.InferTypes = false
		opts.SourceName = entry.Name
		opts.ColumnTypes = make(map[string]dfio.ColumnType, len(schema.Names))
		for i, name := range schema.Names {
			opts.ColumnTypes[name] = schema.Types[i]
		}
		reader = dfio.NewCSVReader(f, opts, s.mem)
	case FormatParquet:
		reader = dfio.NewParquetReader(f, dfio.DefaultParquetOptions(), s.mem)
	default:
		return errors.NewUnsupportedTypeError("Load", string(manifest.Format))
	}

	df, err := reader.Read()
	if err != nil {
		return err
	}
	defer df.Release()
	s.logger.Debug("artifact table read", zap.String("table", entry.Name), zap.Stringer("frame", df))

	return c.decode(df, result)
}
