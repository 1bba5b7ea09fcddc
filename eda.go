// Package eda is the public API of the Olist exploratory analysis pipeline.
//
// A run loads the public Olist CSV snapshot, cleans it, derives the product,
// customer, region, daily and growth tables, and draws a reproducible
// stratified sample of customers for the map:
//
//	cfg, err := eda.LoadConfig("olist.yaml")
//	if err != nil {
//		return err
//	}
//	result, err := eda.Analyze(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	fmt.Println(result.Products.Head(10).Rows())
package eda

import (
	"context"
	"net/http"

	"github.com/paveg/olist-eda/internal/artifact"
	"github.com/paveg/olist-eda/internal/config"
	"github.com/paveg/olist-eda/internal/mapview"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/pipeline"
	"github.com/paveg/olist-eda/internal/server"
)

// Public aliases of the derived types.
type (
	Config             = config.Config
	Result             = model.Result
	Diagnostics        = model.Diagnostics
	ProductPopularity  = model.ProductPopularity
	CategoryPopularity = model.CategoryPopularity
	CustomerSpend      = model.CustomerSpend
	RegionSpend        = model.RegionSpend
	DailyOrderStats    = model.DailyOrderStats
	MonthlyGrowth      = model.MonthlyGrowth
	SpendTier          = model.SpendTier
	Map                = mapview.Map
	MapCache           = mapview.Cache
	Manifest           = artifact.Manifest
	Option             = pipeline.Option
)

// Pipeline options.
var (
	WithLogger     = pipeline.WithLogger
	WithMetrics    = pipeline.WithMetrics
	WithAllocator  = pipeline.WithAllocator
	WithRandSource = pipeline.WithRandSource
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a JSON or YAML file, or starts from the defaults when path
// is empty, then applies OLIST_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	cfg = cfg.WithEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Analyze runs the full pipeline once.
func Analyze(ctx context.Context, cfg Config, opts ...Option) (*Result, error) {
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// Export writes every table of result to dir in the given format
// ("csv", "parquet" or "json").
func Export(result *Result, dir, format string) (*Manifest, error) {
	f, err := artifact.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	store, err := artifact.New(dir, f)
	if err != nil {
		return nil, err
	}
	return store.Save(result)
}

// NewMapCache returns a cache that builds the map of result's sample on first
// use and serves the same map afterwards.
func NewMapCache(result *Result) *MapCache {
	sample := result.Sample
	return mapview.NewCache(func() (*Map, error) {
		return mapview.Build(sample)
	})
}

// Handler serves result over HTTP.
func Handler(result *Result) http.Handler {
	return server.New(result, server.WithMapCache(NewMapCache(result))).Handler()
}
