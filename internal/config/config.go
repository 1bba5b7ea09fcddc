// Package config provides configuration management for the analysis pipeline
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paveg/olist-eda/internal/artifact"
	"github.com/paveg/olist-eda/internal/loader"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/validation"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of one pipeline run
type Config struct {
	// Input
	DataDir         string         `json:"data_dir" yaml:"data_dir"`                 // Directory holding the source CSV files
	Sources         loader.Sources `json:"sources" yaml:"sources"`                   // Per-file overrides; empty entries resolve under DataDir
	TimestampLayout string         `json:"timestamp_layout" yaml:"timestamp_layout"` // Go layout of every source timestamp

	Sampling  SamplingConfig `json:"sampling" yaml:"sampling"`
	Outliers  OutlierConfig  `json:"outliers" yaml:"outliers"`
	Segments  SegmentConfig  `json:"segments" yaml:"segments"`
	Artifacts ArtifactConfig `json:"artifacts" yaml:"artifacts"`
	Server    ServerConfig   `json:"server" yaml:"server"`
	Logging   LoggingConfig  `json:"logging" yaml:"logging"`

	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Record per-stage metrics
}

// SamplingConfig controls the map sample.
type SamplingConfig struct {
	Fraction float64 `json:"fraction" yaml:"fraction"`
	Seed     uint64  `json:"seed" yaml:"seed"` // 0 selects DefaultSeed
}

// OutlierConfig controls spend capping.
type OutlierConfig struct {
	IQRFactor float64 `json:"iqr_factor" yaml:"iqr_factor"`
}

// SegmentConfig holds the tier cut quantiles.
type SegmentConfig struct {
	LowQuantile  float64 `json:"low_quantile" yaml:"low_quantile"`
	HighQuantile float64 `json:"high_quantile" yaml:"high_quantile"`
}

// ArtifactConfig controls where derived tables are persisted.
type ArtifactConfig struct {
	Dir         string `json:"dir" yaml:"dir"`                 // Empty disables persistence
	Format      string `json:"format" yaml:"format"`           // csv, parquet or json
	Compression string `json:"compression" yaml:"compression"` // Parquet codec
	Reuse       bool   `json:"reuse" yaml:"reuse"`             // Load existing artifacts instead of recomputing
}

// ServerConfig controls the HTTP hand-off.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"` // json or console
}

// Default configuration values
const (
	DefaultDataDir        = "data"
	DefaultSampleFraction = 0.05
	DefaultSeed           = 42
	DefaultIQRFactor      = 1.5
	DefaultLowQuantile    = 0.33
	DefaultHighQuantile   = 0.66
	DefaultArtifactFormat = "parquet"
	DefaultCompression    = "snappy"
	DefaultServerAddr     = ":8080"
	DefaultLogLevel       = "info"
	DefaultLogEncoding    = "console"
	envPrefix             = "OLIST_"
)

var compressions = []string{"snappy", "gzip", "zstd", "lz4", "uncompressed"}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		DataDir:         DefaultDataDir,
		TimestampLayout: model.TimestampLayout,
		Sampling: SamplingConfig{
			Fraction: DefaultSampleFraction,
			Seed:     DefaultSeed,
		},
		Outliers: OutlierConfig{IQRFactor: DefaultIQRFactor},
		Segments: SegmentConfig{
			LowQuantile:  DefaultLowQuantile,
			HighQuantile: DefaultHighQuantile,
		},
		Artifacts: ArtifactConfig{
			Format:      DefaultArtifactFormat,
			Compression: DefaultCompression,
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Encoding: DefaultLogEncoding,
		},
		MetricsCollection: true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if c.TimestampLayout == "" {
		return fmt.Errorf("TimestampLayout must not be empty")
	}

	if err := validation.ValidateFraction("config", "sampling.fraction", c.Sampling.Fraction); err != nil {
		return err
	}

	if c.Outliers.IQRFactor < 0 {
		return fmt.Errorf("IQRFactor must be non-negative, got %g", c.Outliers.IQRFactor)
	}

	if err := validation.NewCompoundValidator(
		validation.NewRangeValidator("config", "segments.low_quantile", c.Segments.LowQuantile, 0, 1).Inclusive(),
		validation.NewRangeValidator("config", "segments.high_quantile", c.Segments.HighQuantile, 0, 1).Inclusive(),
	).Validate(); err != nil {
		return err
	}
	if c.Segments.LowQuantile > c.Segments.HighQuantile {
		return fmt.Errorf("LowQuantile (%g) must not exceed HighQuantile (%g)",
			c.Segments.LowQuantile, c.Segments.HighQuantile)
	}

	if _, err := artifact.ParseFormat(c.Artifacts.Format); err != nil {
		return err
	}
	if !slices.Contains(compressions, c.Artifacts.Compression) {
		return fmt.Errorf("unsupported compression %q, expected one of %s",
			c.Artifacts.Compression, strings.Join(compressions, ", "))
	}
	if c.Artifacts.Reuse && c.Artifacts.Dir == "" {
		return fmt.Errorf("artifact reuse requires artifacts.dir")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		return fmt.Errorf("unsupported log encoding %q", c.Logging.Encoding)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	if c.TimestampLayout == "" {
		c.TimestampLayout = defaults.TimestampLayout
	}
	if c.Sampling.Fraction == 0 {
		c.Sampling.Fraction = defaults.Sampling.Fraction
	}
	if c.Sampling.Seed == 0 {
		c.Sampling.Seed = defaults.Sampling.Seed
	}
	if c.Outliers.IQRFactor == 0 {
		c.Outliers.IQRFactor = defaults.Outliers.IQRFactor
	}
	if c.Segments.LowQuantile == 0 && c.Segments.HighQuantile == 0 {
		c.Segments = defaults.Segments
	}
	if c.Artifacts.Format == "" {
		c.Artifacts.Format = defaults.Artifacts.Format
	}
	if c.Artifacts.Compression == "" {
		c.Artifacts.Compression = defaults.Artifacts.Compression
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = defaults.Logging.Encoding
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values

	return c
}

// ResolvedSources returns the source paths, filling unset entries from DataDir
func (c Config) ResolvedSources() loader.Sources {
	resolved := loader.DefaultSources(c.DataDir)
	overrides := []struct {
		value string
		dst   *string
	}{
		{c.Sources.Orders, &resolved.Orders},
		{c.Sources.Items, &resolved.Items},
		{c.Sources.Customers, &resolved.Customers},
		{c.Sources.Geolocations, &resolved.Geolocations},
		{c.Sources.Products, &resolved.Products},
		{c.Sources.Translations, &resolved.Translations},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.dst = o.value
		}
	}
	return resolved
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON and YAML)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables over the defaults
func LoadFromEnv() Config {
	return NewConfig().WithEnv()
}

// WithEnv returns a copy with OLIST_* environment variables applied.
// Unparseable values are ignored.
func (c Config) WithEnv() Config {
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.TimestampLayout, "TIMESTAMP_LAYOUT")
	setFloat(&c.Sampling.Fraction, "SAMPLE_FRACTION")
	if val := os.Getenv(envPrefix + "SAMPLE_SEED"); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Sampling.Seed = parsed
		}
	}
	setFloat(&c.Outliers.IQRFactor, "IQR_FACTOR")
	setFloat(&c.Segments.LowQuantile, "LOW_QUANTILE")
	setFloat(&c.Segments.HighQuantile, "HIGH_QUANTILE")
	setString(&c.Artifacts.Dir, "ARTIFACT_DIR")
	setString(&c.Artifacts.Format, "ARTIFACT_FORMAT")
	setString(&c.Artifacts.Compression, "ARTIFACT_COMPRESSION")
	setBool(&c.Artifacts.Reuse, "ARTIFACT_REUSE")
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Encoding, "LOG_ENCODING")
	setBool(&c.MetricsCollection, "METRICS_COLLECTION")
	return c
}

func setString(dst *string, key string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		*dst = val
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}
