// Package config loads labelme-tools settings with Viper.
//
// Sources, lowest precedence first: built-in defaults, an optional config
// file (toml, yaml or json, chosen by extension), LABELME_TOOLS_* environment
// variables, and command-line flags bound by the CLI.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/ironsheep/labelme-tools-mcp/internal/convert"
	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/detect"
	"github.com/ironsheep/labelme-tools-mcp/internal/scanner"
)

// EnvPrefix prefixes every environment variable, e.g.
// LABELME_TOOLS_CONVERT_OUTPUT_FORMAT.
const EnvPrefix = "LABELME_TOOLS"

// Config is the full application configuration.
type Config struct {
	Convert convert.Request `mapstructure:"convert"`
	Scanner ScannerConfig   `mapstructure:"scanner"`
	Detect  DetectConfig    `mapstructure:"detect"`
	Cache   CacheConfig     `mapstructure:"cache"`
	Log     LogConfig       `mapstructure:"log"`
}

// ScannerConfig sizes the directory scan worker pool.
type ScannerConfig struct {
	Workers int   `mapstructure:"workers"`
	MaxJobs int64 `mapstructure:"max_jobs"`
}

// DetectConfig overrides format detection sampling.
type DetectConfig struct {
	MaxSampleFiles       int     `mapstructure:"max_sample_files"`
	MaxSampleAnnotations int     `mapstructure:"max_sample_annotations"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"`
}

// CacheConfig controls the directory listing cache.
type CacheConfig struct {
	// ListingTTL is how long a directory listing is reused.
	ListingTTL time.Duration `mapstructure:"listing_ttl"`
	// Watch invalidates listings as soon as a listed directory changes.
	Watch bool `mapstructure:"watch"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults registers every key with its default. Keys must be known to
// Viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	req := convert.DefaultRequest()
	v.SetDefault("convert.input_dir", "")
	v.SetDefault("convert.output_dir", "")
	v.SetDefault("convert.custom_dataset_name", "")
	v.SetDefault("convert.output_format", req.OutputFormat)
	v.SetDefault("convert.annotation_format", req.AnnotationFormat)
	v.SetDefault("convert.val_size", req.ValSize)
	v.SetDefault("convert.test_size", req.TestSize)
	v.SetDefault("convert.seed", req.Seed)
	v.SetDefault("convert.include_background", false)
	v.SetDefault("convert.label_list", []string{})
	v.SetDefault("convert.deterministic_labels", false)
	v.SetDefault("convert.segmentation_mode", req.SegmentationMode)
	v.SetDefault("convert.start_image_id", req.StartImageID)
	v.SetDefault("convert.start_annotation_id", req.StartAnnotationID)
	v.SetDefault("convert.remove_image_data", false)
	v.SetDefault("convert.labelme_output_format", req.LabelmeOutputFormat)
	v.SetDefault("convert.input_format", "")

	sc := scanner.DefaultConfig()
	v.SetDefault("scanner.workers", sc.Workers)
	v.SetDefault("scanner.max_jobs", sc.MaxJobs)

	dc := detect.DefaultConfig()
	v.SetDefault("detect.max_sample_files", dc.MaxSampleFiles)
	v.SetDefault("detect.max_sample_annotations", dc.MaxSampleAnnotations)
	v.SetDefault("detect.confidence_threshold", dc.ConfidenceThreshold)

	v.SetDefault("cache.listing_ttl", dataset.DefaultListingTTL)
	v.SetDefault("cache.watch", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// NewViper returns a Viper instance with defaults and environment binding,
// reading configFile when it is not empty.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}
	return v, nil
}

// Load unmarshals v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFile is NewViper followed by Load.
func LoadFile(configFile string) (*Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}
	return Load(v)
}

// ScannerConfig converts the scanner and detect sections for scanner.New.
func (c *Config) ScannerConfig() scanner.Config {
	return scanner.Config{
		Workers:  c.Scanner.Workers,
		MaxJobs:  c.Scanner.MaxJobs,
		Analysis: c.AnalysisConfig(),
	}
}

// AnalysisConfig returns the detect section for the format detector.
func (c *Config) AnalysisConfig() detect.AnalysisConfig {
	return detect.AnalysisConfig{
		MaxSampleFiles:       c.Detect.MaxSampleFiles,
		MaxSampleAnnotations: c.Detect.MaxSampleAnnotations,
		ConfidenceThreshold:  c.Detect.ConfidenceThreshold,
	}
}
