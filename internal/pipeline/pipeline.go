// Package pipeline runs the analysis stages in order and collects their
// output tables and diagnostics into a model.Result.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/olist-eda/internal/aggregate"
	"github.com/paveg/olist-eda/internal/artifact"
	"github.com/paveg/olist-eda/internal/cleaner"
	"github.com/paveg/olist-eda/internal/config"
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/growth"
	"github.com/paveg/olist-eda/internal/loader"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/monitoring"
	"github.com/paveg/olist-eda/internal/outlier"
	"github.com/paveg/olist-eda/internal/sample"
	"github.com/paveg/olist-eda/internal/segment"
	"go.uber.org/zap"
)

// Stage names as recorded in metrics.
const (
	StageLoad          = "load"
	StageClean         = "clean"
	StageSoldItems     = "aggregate.sold_items"
	StageProducts      = "aggregate.products"
	StageCustomers     = "aggregate.customers"
	StageCap           = "outlier.cap"
	StageSegment       = "segment"
	StageRegions       = "aggregate.regions"
	StageDaily         = "aggregate.daily"
	StageSample        = "sample"
	StageGrowth        = "growth"
	StageArtifactsLoad = "artifacts.load"
	StageArtifactsSave = "artifacts.save"
)

// Pipeline executes one configured run.
type Pipeline struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
	mem     memory.Allocator
	source  rand.Source
	store   *artifact.Store
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the collector stages are recorded in
func WithMetrics(collector *monitoring.MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = collector }
}

// WithAllocator sets the Arrow allocator used for file I/O
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) { p.mem = mem }
}

// WithRandSource replaces the seeded sampling source. The configured seed is
// still reported in the diagnostics.
func WithRandSource(src rand.Source) Option {
	return func(p *Pipeline) { p.source = src }
}

// New validates cfg and builds a pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: zap.NewNop(),
		mem:    memory.NewGoAllocator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetricsCollector(cfg.MetricsCollection)
	}

	if cfg.Artifacts.Dir != "" {
		format, err := artifact.ParseFormat(cfg.Artifacts.Format)
		if err != nil {
			return nil, err
		}
		p.store, err = artifact.New(cfg.Artifacts.Dir, format,
			artifact.WithCompression(cfg.Artifacts.Compression),
			artifact.WithAllocator(p.mem),
			artifact.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Metrics returns the collector the pipeline records into
func (p *Pipeline) Metrics() *monitoring.MetricsCollector {
	return p.metrics
}

// Run loads the sources, computes every derived table and persists them when
// an artifact directory is configured. With artifact reuse enabled and a
// saved run present, the saved tables are returned instead.
func (p *Pipeline) Run(ctx context.Context) (*model.Result, error) {
	if p.store != nil && p.cfg.Artifacts.Reuse && p.store.Exists() {
		var result *model.Result
		err := p.stage(ctx, StageArtifactsLoad, func() (int64, error) {
			var err error
			result, err = p.store.Load()
			if err != nil {
				return 0, err
			}
			return int64(result.Customers.Len()), nil
		})
		if err != nil {
			return nil, err
		}
		p.logger.Info("reusing saved artifacts", zap.String("dir", p.store.Dir()))
		return result, nil
	}

	var ds *model.Dataset
	err := p.stage(ctx, StageLoad, func() (int64, error) {
		l := loader.New(p.cfg.ResolvedSources(),
			loader.WithTimestampLayout(p.cfg.TimestampLayout),
			loader.WithAllocator(p.mem),
			loader.WithLogger(p.logger))
		var err error
		ds, err = l.Load(ctx)
		if err != nil {
			return 0, err
		}
		return int64(ds.Orders.Len() + ds.Items.Len() + ds.Customers.Len() +
			ds.Geolocations.Len() + ds.Products.Len() + ds.Translations.Len()), nil
	})
	if err != nil {
		return nil, err
	}

	result, err := p.Compute(ctx, *ds)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		err := p.stage(ctx, StageArtifactsSave, func() (int64, error) {
			manifest, err := p.store.Save(result)
			if err != nil {
				return 0, err
			}
			var rows int64
			for _, t := range manifest.Tables {
				rows += int64(t.Rows)
			}
			return rows, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Compute runs the analysis stages over an already loaded dataset.
func (p *Pipeline) Compute(ctx context.Context, ds model.Dataset) (*model.Result, error) {
	result := &model.Result{}
	diag := &result.Diagnostics

	var cleaned model.Dataset
	err := p.stage(ctx, StageClean, func() (int64, error) {
		var err error
		cleaned, diag.Cleaning, diag.Lags, err = cleaner.Clean(ds)
		return int64(cleaned.Orders.Len()), err
	})
	if err != nil {
		return nil, err
	}

	sold := cleaned.Items
	if err := p.stage(ctx, StageSoldItems, func() (int64, error) {
		sold = aggregate.SoldItems(cleaned.Items, cleaned.Orders)
		return int64(sold.Len()), nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageProducts, func() (int64, error) {
		var warnings []errors.JoinIntegrityWarning
		result.Products, warnings = aggregate.ProductPopularity(sold, cleaned.Products, cleaned.Translations)
		result.Categories = aggregate.CategoryPopularity(result.Products)
		p.warn(diag, warnings)
		return int64(result.Products.Len()), nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageCustomers, func() (int64, error) {
		var warnings []errors.JoinIntegrityWarning
		result.Customers, warnings = aggregate.CustomerSpend(sold, cleaned.Orders, cleaned.Customers, cleaned.Geolocations)
		p.warn(diag, warnings)
		return int64(result.Customers.Len()), nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageCap, func() (int64, error) {
		var err error
		result.Customers, diag.Bounds, err = outlier.Cap(result.Customers, p.cfg.Outliers.IQRFactor)
		return int64(result.Customers.Len()), err
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageSegment, func() (int64, error) {
		var err error
		result.Customers, diag.Thresholds, err = segment.Assign(result.Customers,
			p.cfg.Segments.LowQuantile, p.cfg.Segments.HighQuantile)
		return int64(result.Customers.Len()), err
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageRegions, func() (int64, error) {
		result.Regions = aggregate.RegionSpend(result.Customers)
		return int64(result.Regions.Len()), nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageDaily, func() (int64, error) {
		result.Daily = aggregate.DailyOrderStats(sold, cleaned.Orders)
		return int64(result.Daily.Len()), nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageSample, func() (int64, error) {
		src := p.source
		if src == nil {
			src = sample.NewSource(p.cfg.Sampling.Seed)
		}
		var err error
		result.Sample, diag.Sampling, err = sample.Stratified(result.Customers, p.cfg.Sampling.Fraction, src)
		diag.Sampling.Seed = p.cfg.Sampling.Seed
		return int64(result.Sample.Len()), err
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, StageGrowth, func() (int64, error) {
		result.Growth = growth.Monthly(cleaned.Orders, sold, cleaned.Customers)
		return int64(result.Growth.Len()), nil
	}); err != nil {
		return nil, err
	}

	p.logger.Info("analysis complete",
		zap.Int("products", result.Products.Len()),
		zap.Int("customers", result.Customers.Len()),
		zap.Int("sampled", result.Sample.Len()),
		zap.Int("warnings", len(diag.Warnings)))
	return result, nil
}

// stage checks for cancellation, then runs fn under the metrics collector.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() (int64, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("stage started", zap.String("stage", name))
	if err := p.metrics.RecordOperation(name, fn); err != nil {
		p.logger.Error("stage failed", zap.String("stage", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("stage finished", zap.String("stage", name))
	return nil
}

func (p *Pipeline) warn(diag *model.Diagnostics, warnings []errors.JoinIntegrityWarning) {
	for _, w := range warnings {
		p.logger.Warn("join integrity",
			zap.String("join", w.Join),
			zap.String("key", w.Key),
			zap.Int("missing", w.Missing),
			zap.String("example", w.Example))
		diag.Warnings = append(diag.Warnings, w.String())
	}
}
