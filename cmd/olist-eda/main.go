package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	eda "github.com/paveg/olist-eda"
	"github.com/paveg/olist-eda/internal/logging"
	"github.com/paveg/olist-eda/internal/monitoring"
	"github.com/paveg/olist-eda/internal/server"
	"github.com/paveg/olist-eda/internal/version"
	"go.uber.org/zap"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "Olist exploratory analysis (version %s)\n\n", version.Version)
	fmt.Fprintf(os.Stderr, "Usage: olist-eda [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

type options struct {
	configPath string
	exportDir  string
	format     string
	serveAddr  string
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML configuration file")
	flag.StringVar(&opts.exportDir, "export", "", "Write the derived tables to this directory")
	flag.StringVar(&opts.format, "format", "csv", "Export format: csv, parquet or json")
	flag.StringVar(&opts.serveAddr, "serve", "", "Serve the tables over HTTP on this address (e.g. :8080)")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage
	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "olist-eda: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := eda.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := monitoring.NewMetricsCollector(cfg.MetricsCollection)
	result, err := eda.Analyze(ctx, cfg, eda.WithLogger(logger), eda.WithMetrics(metrics))
	if err != nil {
		return err
	}
	printSummary(out, result)

	if opts.exportDir != "" {
		manifest, err := eda.Export(result, opts.exportDir, opts.format)
		if err != nil {
			return fmt.Errorf("exporting tables: %w", err)
		}
		logger.Info("tables exported",
			zap.String("dir", opts.exportDir),
			zap.String("format", string(manifest.Format)),
			zap.Int("tables", len(manifest.Tables)))
	}

	if opts.serveAddr != "" {
		srv := server.New(result,
			server.WithLogger(logger),
			server.WithMetrics(metrics),
			server.WithMapCache(eda.NewMapCache(result)))
		return srv.ListenAndServe(ctx, opts.serveAddr)
	}
	return nil
}

func printSummary(out io.Writer, result *eda.Result) {
	diag := result.Diagnostics
	fmt.Fprintf(out, "products:   %d\n", result.Products.Len())
	fmt.Fprintf(out, "categories: %d\n", result.Categories.Len())
	fmt.Fprintf(out, "customers:  %d (sampled %d)\n", result.Customers.Len(), result.Sample.Len())
	fmt.Fprintf(out, "regions:    %d\n", result.Regions.Len())
	fmt.Fprintf(out, "days:       %d\n", result.Daily.Len())
	fmt.Fprintf(out, "lags:       carrier %dd, customer %dd\n", diag.Lags.CarrierDays, diag.Lags.CustomerDays)
	fmt.Fprintf(out, "spend cap:  %.2f (%d capped)\n", diag.Bounds.Upper, diag.Bounds.Capped)
	fmt.Fprintf(out, "tiers:      low < %.2f <= med < %.2f <= high\n", diag.Thresholds.Low, diag.Thresholds.High)
	for _, w := range diag.Warnings {
		fmt.Fprintf(out, "warning:    %s\n", w)
	}
}
