// Package loader reads the Olist source files into typed tables.
//
// Every file goes through the CSV reader in string mode, so zip code
// prefixes keep their leading zeros. Numeric columns are declared to the
// reader and timestamps are parsed here with a fixed layout. Any missing
// required column or malformed value fails the load with a ParseError.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/dataframe"
	"github.com/paveg/olist-eda/internal/errors"
	dfio "github.com/paveg/olist-eda/internal/io"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/series"
	"github.com/paveg/olist-eda/internal/table"
	"github.com/paveg/olist-eda/internal/validation"
	"go.uber.org/zap"
)

// Source names used in errors and logs.
const (
	SourceOrders       = "orders"
	SourceItems        = "order_items"
	SourceCustomers    = "customers"
	SourceGeolocations = "geolocation"
	SourceProducts     = "products"
	SourceTranslations = "category_translation"
)

// Sources holds the path of every source file.
type Sources struct {
	Orders       string `json:"orders" yaml:"orders"`
	Items        string `json:"items" yaml:"items"`
	Customers    string `json:"customers" yaml:"customers"`
	Geolocations string `json:"geolocations" yaml:"geolocations"`
	Products     string `json:"products" yaml:"products"`
	Translations string `json:"translations" yaml:"translations"`
}

// DefaultSources returns the public dataset's file names under dir.
func DefaultSources(dir string) Sources {
	return Sources{
		Orders:       filepath.Join(dir, "olist_orders_dataset.csv"),
		Items:        filepath.Join(dir, "olist_order_items_dataset.csv"),
		Customers:    filepath.Join(dir, "olist_customers_dataset.csv"),
		Geolocations: filepath.Join(dir, "olist_geolocation_dataset.csv"),
		Products:     filepath.Join(dir, "olist_products_dataset.csv"),
		Translations: filepath.Join(dir, "product_category_name_translation.csv"),
	}
}

// Loader reads the configured sources.
type Loader struct {
	sources Sources
	layout  string
	mem     memory.Allocator
	logger  *zap.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithTimestampLayout overrides the timestamp layout
func WithTimestampLayout(layout string) Option {
	return func(l *Loader) {
		if layout != "" {
			l.layout = layout
		}
	}
}

// WithAllocator sets the Arrow allocator used while parsing
func WithAllocator(mem memory.Allocator) Option {
	return func(l *Loader) {
		if mem != nil {
			l.mem = mem
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader
func New(sources Sources, opts ...Option) *Loader {
	l := &Loader{
		sources: sources,
		layout:  model.TimestampLayout,
		mem:     memory.NewGoAllocator(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source. The context is checked between files.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, error) {
	ds := &model.Dataset{}

	steps := []struct {
		name string
		path string
		read func(io.Reader) (int, error)
	}{
		{SourceOrders, l.sources.Orders, func(r io.Reader) (int, error) {
			t, err := l.ReadOrders(r)
			ds.Orders = t
			return t.Len(), err
		}},
		{SourceItems, l.sources.Items, func(r io.Reader) (int, error) {
			t, err := l.ReadItems(r)
			ds.Items = t
			return t.Len(), err
		}},
		{SourceCustomers, l.sources.Customers, func(r io.Reader) (int, error) {
			t, err := l.ReadCustomers(r)
			ds.Customers = t
			return t.Len(), err
		}},
		{SourceGeolocations, l.sources.Geolocations, func(r io.Reader) (int, error) {
			t, err := l.ReadGeolocations(r)
			ds.Geolocations = t
			return t.Len(), err
		}},
		{SourceProducts, l.sources.Products, func(r io.Reader) (int, error) {
			t, err := l.ReadProducts(r)
			ds.Products = t
			return t.Len(), err
		}},
		{SourceTranslations, l.sources.Translations, func(r io.Reader) (int, error) {
			t, err := l.ReadTranslations(r)
			ds.Translations = t
			return t.Len(), err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.path == "" {
			return nil, errors.NewInvalidInputError("Load", "no path configured for source "+step.name)
		}

		rows, err := readFile(step.path, step.read)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", step.name, err)
		}
		l.logger.Debug("source loaded",
			zap.String("source", step.name),
			zap.String("path", step.path),
			zap.Int("rows", rows))
	}

	return ds, nil
}

func readFile(path string, read func(io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return read(f)
}

// ReadOrders parses the orders source. Purchase and estimated delivery
// timestamps are required; the others may be empty.
func (l *Loader) ReadOrders(r io.Reader) (table.Table[model.Order], error) {
	f, err := l.readFrame(r, SourceOrders, nil,
		"order_id", "customer_id",
		"order_purchase_timestamp", "order_approved_at",
		"order_delivered_carrier_date", "order_delivered_customer_date",
		"order_estimated_delivery_date")
	if err != nil {
		return table.Table[model.Order]{}, err
	}
	defer f.release()

	ids, err := f.strings("order_id")
	if err != nil {
		return table.Table[model.Order]{}, err
	}
	customers, err := f.strings("customer_id")
	if err != nil {
		return table.Table[model.Order]{}, err
	}
	status := f.optionalStrings("order_status")

	stamps := map[string]*series.Series[string]{}
	for _, col := range []string{
		"order_purchase_timestamp", "order_approved_at",
		"order_delivered_carrier_date", "order_delivered_customer_date",
		"order_estimated_delivery_date",
	} {
		s, err := f.strings(col)
		if err != nil {
			return table.Table[model.Order]{}, err
		}
		stamps[col] = s
	}

	rows := make([]model.Order, f.df.Len())
	for i := range rows {
		purchased, err := f.timestamp(stamps["order_purchase_timestamp"], i)
		if err != nil {
			return table.Table[model.Order]{}, err
		}
		estimated, err := f.timestamp(stamps["order_estimated_delivery_date"], i)
		if err != nil {
			return table.Table[model.Order]{}, err
		}
		approved, err := f.optionalTimestamp(stamps["order_approved_at"], i)
		if err != nil {
			return table.Table[model.Order]{}, err
		}
		carrier, err := f.optionalTimestamp(stamps["order_delivered_carrier_date"], i)
		if err != nil {
			return table.Table[model.Order]{}, err
		}
		customer, err := f.optionalTimestamp(stamps["order_delivered_customer_date"], i)
		if err != nil {
			return table.Table[model.Order]{}, err
		}

		rows[i] = model.Order{
			OrderID:             ids.Value(i),
			CustomerID:          customers.Value(i),
			Status:              status(i),
			PurchasedAt:         purchased,
			ApprovedAt:          approved,
			DeliveredCarrierAt:  carrier,
			DeliveredCustomerAt: customer,
			EstimatedDeliveryAt: estimated,
		}
	}
	return table.From(rows), nil
}

// ReadItems parses the order items source. Prices must be non-negative.
func (l *Loader) ReadItems(r io.Reader) (table.Table[model.OrderItem], error) {
	f, err := l.readFrame(r, SourceItems,
		map[string]dfio.ColumnType{
			"order_item_id": dfio.Int64,
			"price":         dfio.Float64,
			"freight_value": dfio.Float64,
		},
		"order_id", "product_id", "shipping_limit_date", "price")
	if err != nil {
		return table.Table[model.OrderItem]{}, err
	}
	defer f.release()

	orderIDs, err := f.strings("order_id")
	if err != nil {
		return table.Table[model.OrderItem]{}, err
	}
	productIDs, err := f.strings("product_id")
	if err != nil {
		return table.Table[model.OrderItem]{}, err
	}
	limits, err := f.strings("shipping_limit_date")
	if err != nil {
		return table.Table[model.OrderItem]{}, err
	}
	prices, err := dataframe.Typed[float64](f.df, "price")
	if err != nil {
		return table.Table[model.OrderItem]{}, err
	}
	sellers := f.optionalStrings("seller_id")
	seqs := optionalTyped[int64](f.df, "order_item_id")
	freights := optionalTyped[float64](f.df, "freight_value")

	rows := make([]model.OrderItem, f.df.Len())
	for i := range rows {
		if prices.IsNull(i) {
			return table.Table[model.OrderItem]{}, errors.NewParseError(SourceItems, "price", i+1, "", "missing value")
		}
		price := prices.Value(i)
		if price < 0 {
			return table.Table[model.OrderItem]{}, errors.NewParseError(SourceItems, "price", i+1,
				prices.GetAsString(i), "price must be non-negative")
		}
		limit, err := f.timestamp(limits, i)
		if err != nil {
			return table.Table[model.OrderItem]{}, err
		}

		rows[i] = model.OrderItem{
			OrderID:         orderIDs.Value(i),
			ItemSeq:         seqs(i),
			ProductID:       productIDs.Value(i),
			SellerID:        sellers(i),
			ShippingLimitAt: limit,
			Price:           price,
			Freight:         freights(i),
		}
	}
	return table.From(rows), nil
}

// ReadCustomers parses the customers source.
func (l *Loader) ReadCustomers(r io.Reader) (table.Table[model.Customer], error) {
	f, err := l.readFrame(r, SourceCustomers, nil,
		"customer_id", "customer_zip_code_prefix", "customer_city", "customer_state")
	if err != nil {
		return table.Table[model.Customer]{}, err
	}
	defer f.release()

	cols, err := f.stringColumns("customer_id", "customer_zip_code_prefix", "customer_city", "customer_state")
	if err != nil {
		return table.Table[model.Customer]{}, err
	}
	unique := f.optionalStrings("customer_unique_id")

	rows := make([]model.Customer, f.df.Len())
	for i := range rows {
		rows[i] = model.Customer{
			CustomerID:    cols[0].Value(i),
			UniqueID:      unique(i),
			ZipCodePrefix: NormalizeZipPrefix(cols[1].Value(i)),
			City:          cols[2].Value(i),
			State:         cols[3].Value(i),
		}
	}
	return table.From(rows), nil
}

// ReadGeolocations parses the geolocation source. Duplicate prefixes are kept;
// the cleaner removes them.
func (l *Loader) ReadGeolocations(r io.Reader) (table.Table[model.Geolocation], error) {
	f, err := l.readFrame(r, SourceGeolocations,
		map[string]dfio.ColumnType{
			"geolocation_lat": dfio.Float64,
			"geolocation_lng": dfio.Float64,
		},
		"geolocation_zip_code_prefix", "geolocation_lat", "geolocation_lng")
	if err != nil {
		return table.Table[model.Geolocation]{}, err
	}
	defer f.release()

	zips, err := f.strings("geolocation_zip_code_prefix")
	if err != nil {
		return table.Table[model.Geolocation]{}, err
	}
	lats, err := dataframe.Typed[float64](f.df, "geolocation_lat")
	if err != nil {
		return table.Table[model.Geolocation]{}, err
	}
	lngs, err := dataframe.Typed[float64](f.df, "geolocation_lng")
	if err != nil {
		return table.Table[model.Geolocation]{}, err
	}
	cities := f.optionalStrings("geolocation_city")
	states := f.optionalStrings("geolocation_state")

	rows := make([]model.Geolocation, f.df.Len())
	for i := range rows {
		if lats.IsNull(i) {
			return table.Table[model.Geolocation]{}, errors.NewParseError(SourceGeolocations, "geolocation_lat", i+1, "", "missing value")
		}
		if lngs.IsNull(i) {
			return table.Table[model.Geolocation]{}, errors.NewParseError(SourceGeolocations, "geolocation_lng", i+1, "", "missing value")
		}
		rows[i] = model.Geolocation{
			ZipCodePrefix: NormalizeZipPrefix(zips.Value(i)),
			Lat:           lats.Value(i),
			Lng:           lngs.Value(i),
			City:          cities(i),
			State:         states(i),
		}
	}
	return table.From(rows), nil
}

// ReadProducts parses the products source. An empty category is null.
func (l *Loader) ReadProducts(r io.Reader) (table.Table[model.Product], error) {
	f, err := l.readFrame(r, SourceProducts, nil, "product_id", "product_category_name")
	if err != nil {
		return table.Table[model.Product]{}, err
	}
	defer f.release()

	cols, err := f.stringColumns("product_id", "product_category_name")
	if err != nil {
		return table.Table[model.Product]{}, err
	}

	rows := make([]model.Product, f.df.Len())
	for i := range rows {
		category := model.None[string]()
		if name := strings.TrimSpace(cols[1].Value(i)); name != "" {
			category = model.Some(name)
		}
		rows[i] = model.Product{ProductID: cols[0].Value(i), CategoryName: category}
	}
	return table.From(rows), nil
}

// ReadTranslations parses the category translation source.
func (l *Loader) ReadTranslations(r io.Reader) (table.Table[model.CategoryTranslation], error) {
	f, err := l.readFrame(r, SourceTranslations, nil, "product_category_name", "product_category_name_english")
	if err != nil {
		return table.Table[model.CategoryTranslation]{}, err
	}
	defer f.release()

	cols, err := f.stringColumns("product_category_name", "product_category_name_english")
	if err != nil {
		return table.Table[model.CategoryTranslation]{}, err
	}

	rows := make([]model.CategoryTranslation, f.df.Len())
	for i := range rows {
		rows[i] = model.CategoryTranslation{
			CategoryName:        strings.TrimSpace(cols[0].Value(i)),
			CategoryNameEnglish: strings.TrimSpace(cols[1].Value(i)),
		}
	}
	return table.From(rows), nil
}

// NormalizeZipPrefix trims a zip code prefix and left-pads purely numeric
// prefixes to five digits, so "1037" and "01037" are the same key.
func NormalizeZipPrefix(raw string) string {
	zip := strings.TrimSpace(raw)
	if zip == "" || len(zip) >= 5 {
		return zip
	}
	for _, c := range zip {
		if c < '0' || c > '9' {
			return zip
		}
	}
	return strings.Repeat("0", 5-len(zip)) + zip
}

// frame is a parsed source file
type frame struct {
	df     *dataframe.DataFrame
	source string
	layout string
}

func (l *Loader) readFrame(r io.Reader, source string, types map[string]dfio.ColumnType, required ...string) (*frame, error) {
	options := dfio.DefaultCSVOptions()
	options.InferTypes = false
	options.ColumnTypes = types
	options.SourceName = source

	df, err := dfio.NewCSVReader(r, options, l.mem).Read()
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateRequiredColumns(df, source, required...); err != nil {
		df.Release()
		return nil, err
	}
	return &frame{df: df, source: source, layout: l.layout}, nil
}

func (f *frame) release() {
	f.df.Release()
}

func (f *frame) strings(col string) (*series.Series[string], error) {
	return dataframe.Typed[string](f.df, col)
}

func (f *frame) stringColumns(cols ...string) ([]*series.Series[string], error) {
	out := make([]*series.Series[string], len(cols))
	for i, col := range cols {
		s, err := f.strings(col)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// optionalStrings returns an accessor yielding "" when the column is absent
func (f *frame) optionalStrings(col string) func(int) string {
	s, err := f.strings(col)
	if err != nil {
		return func(int) string { return "" }
	}
	return func(i int) string { return strings.TrimSpace(s.Value(i)) }
}

// optionalTyped returns an accessor yielding the zero value when the column
// is absent or the cell is null
func optionalTyped[T any](df *dataframe.DataFrame, col string) func(int) T {
	s, err := dataframe.Typed[T](df, col)
	if err != nil {
		return func(int) T {
			var zero T
			return zero
		}
	}
	return s.Value
}

func (f *frame) timestamp(s *series.Series[string], i int) (time.Time, error) {
	raw := strings.TrimSpace(s.Value(i))
	if raw == "" {
		return time.Time{}, errors.NewParseError(f.source, s.Name(), i+1, "", "missing timestamp")
	}
	t, err := time.ParseInLocation(f.layout, raw, time.UTC)
	if err != nil {
		parseErr := errors.NewParseError(f.source, s.Name(), i+1, raw, "timestamp does not match layout "+f.layout)
		parseErr.Cause = err
		return time.Time{}, parseErr
	}
	return t, nil
}

func (f *frame) optionalTimestamp(s *series.Series[string], i int) (model.Null[time.Time], error) {
	if strings.TrimSpace(s.Value(i)) == "" {
		return model.None[time.Time](), nil
	}
	t, err := f.timestamp(s, i)
	if err != nil {
		return model.None[time.Time](), err
	}
	return model.Some(t), nil
}
