// Package convert turns a directory of labelme annotations into a YOLO,
// COCO or filtered labelme dataset.
package convert

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// OutputFormat selects the writer.
type OutputFormat string

const (
	OutputYOLO    OutputFormat = "yolo"
	OutputCOCO    OutputFormat = "coco"
	OutputLabelme OutputFormat = "labelme"
)

// AnnotationFormat selects YOLO line geometry.
type AnnotationFormat string

const (
	AnnotationBbox    AnnotationFormat = "bbox"
	AnnotationPolygon AnnotationFormat = "polygon"
)

// SegmentationMode controls whether COCO annotations carry a segmentation.
type SegmentationMode string

const (
	SegmentationPolygon  SegmentationMode = "polygon"
	SegmentationBboxOnly SegmentationMode = "bbox_only"
)

// LabelmeShapes controls how the labelme writer rewrites shape points.
type LabelmeShapes string

const (
	ShapesOriginal   LabelmeShapes = "original"
	ShapesBbox2Point LabelmeShapes = "bbox_2point"
	ShapesBbox4Point LabelmeShapes = "bbox_4point"
)

const (
	DefaultValSize = 0.2
	DefaultSeed    = 42
	DefaultStartID = 1
)

// ratioEpsilon absorbs float error in val+test sums such as 0.7+0.3.
const ratioEpsilon = 1e-9

// Config describes one conversion run. Build it with NewConfig, which applies
// defaults and validates; Convert validates again before touching the disk.
type Config struct {
	InputDir    string
	OutputDir   string // defaults to InputDir
	DatasetName string // overrides the generated folder name

	OutputFormat     OutputFormat
	AnnotationFormat AnnotationFormat

	ValSize  float64
	TestSize float64
	// Seed is recorded for reproducibility. Splits are a pure function of the
	// image path and do not depend on it.
	Seed uint64

	LabelList           []string
	DeterministicLabels bool
	IncludeBackground   bool

	SegmentationMode  SegmentationMode
	StartImageID      int
	StartAnnotationID int

	RemoveImageData bool
	LabelmeShapes   LabelmeShapes

	// DetectedFormat skips auto-detection when set.
	DetectedFormat labelme.InputFormat
}

// Option customizes a Config in NewConfig.
type Option func(*Config)

// DefaultConfig returns a config for inputDir with every default applied.
func DefaultConfig(inputDir string) Config {
	return Config{
		InputDir:          inputDir,
		OutputFormat:      OutputYOLO,
		AnnotationFormat:  AnnotationBbox,
		ValSize:           DefaultValSize,
		Seed:              DefaultSeed,
		SegmentationMode:  SegmentationPolygon,
		StartImageID:      DefaultStartID,
		StartAnnotationID: DefaultStartID,
		LabelmeShapes:     ShapesOriginal,
	}
}

// NewConfig builds and validates a config. Validation failures are returned
// as a *ValidationError listing every problem.
func NewConfig(inputDir string, opts ...Option) (Config, error) {
	cfg := DefaultConfig(inputDir)
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithOutputDir sets the directory the dataset folder is created in.
func WithOutputDir(dir string) Option { return func(c *Config) { c.OutputDir = dir } }

// WithDatasetName replaces the timestamped folder name.
func WithDatasetName(name string) Option { return func(c *Config) { c.DatasetName = name } }

// WithOutputFormat selects the yolo, coco or labelme writer.
func WithOutputFormat(f OutputFormat) Option { return func(c *Config) { c.OutputFormat = f } }

// WithAnnotationFormat selects YOLO bbox or polygon lines.
func WithAnnotationFormat(f AnnotationFormat) Option {
	return func(c *Config) { c.AnnotationFormat = f }
}

// WithSplit sets the validation and test proportions.
func WithSplit(val, test float64) Option {
	return func(c *Config) {
		c.ValSize = val
		c.TestSize = test
	}
}

// WithSeed records the seed with the run.
func WithSeed(seed uint64) Option { return func(c *Config) { c.Seed = seed } }

// WithLabels sets a predefined label list; ids follow list order and shapes
// with other labels are skipped.
func WithLabels(labels ...string) Option {
	return func(c *Config) { c.LabelList = append([]string(nil), labels...) }
}

// WithDeterministicLabels assigns class ids from the sorted label set.
func WithDeterministicLabels() Option { return func(c *Config) { c.DeterministicLabels = true } }

// WithBackground also exports images that have no annotation file.
func WithBackground() Option { return func(c *Config) { c.IncludeBackground = true } }

// WithSegmentationMode chooses COCO polygon or bbox_only segmentation.
func WithSegmentationMode(m SegmentationMode) Option {
	return func(c *Config) { c.SegmentationMode = m }
}

// WithStartIDs sets the first COCO image and annotation ids.
func WithStartIDs(image, annotation int) Option {
	return func(c *Config) {
		c.StartImageID = image
		c.StartAnnotationID = annotation
	}
}

// WithoutImageData strips imageData from labelme output.
func WithoutImageData() Option { return func(c *Config) { c.RemoveImageData = true } }

// WithLabelmeShapes sets how labelme output rewrites shapes.
func WithLabelmeShapes(s LabelmeShapes) Option { return func(c *Config) { c.LabelmeShapes = s } }

// WithDetectedFormat skips format detection and validates against f.
func WithDetectedFormat(f labelme.InputFormat) Option {
	return func(c *Config) { c.DetectedFormat = f }
}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid conversion config: " + strings.Join(e.Problems, "; ")
}

// Validate checks every constraint and reports all violations at once.
func (c Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.InputDir == "" {
		addf("input directory is required")
	} else if info, err := os.Stat(c.InputDir); err != nil {
		addf("input directory does not exist: %s", c.InputDir)
	} else if !info.IsDir() {
		addf("input path is not a directory: %s", c.InputDir)
	}

	if math.IsNaN(c.ValSize) || c.ValSize < 0 || c.ValSize > 1 {
		addf("val_size must be between 0.0 and 1.0, got %g", c.ValSize)
	}
	if math.IsNaN(c.TestSize) || c.TestSize < 0 || c.TestSize > 1 {
		addf("test_size must be between 0.0 and 1.0, got %g", c.TestSize)
	}
	if c.ValSize+c.TestSize > 1+ratioEpsilon {
		addf("val_size + test_size must not exceed 1.0, got %g", c.ValSize+c.TestSize)
	}

	switch c.OutputFormat {
	case OutputYOLO, OutputCOCO, OutputLabelme:
	default:
		addf("unknown output format: %q", c.OutputFormat)
	}
	switch c.AnnotationFormat {
	case AnnotationBbox, AnnotationPolygon:
	default:
		addf("unknown annotation format: %q", c.AnnotationFormat)
	}
	switch c.SegmentationMode {
	case SegmentationPolygon, SegmentationBboxOnly:
	default:
		addf("unknown segmentation mode: %q", c.SegmentationMode)
	}
	switch c.LabelmeShapes {
	case ShapesOriginal, ShapesBbox2Point, ShapesBbox4Point:
	default:
		addf("unknown labelme output format: %q", c.LabelmeShapes)
	}
	switch c.DetectedFormat {
	case "", labelme.FormatBbox2Point, labelme.FormatBbox4Point, labelme.FormatPolygon, labelme.FormatUnknown:
	default:
		addf("unknown input format: %q", c.DetectedFormat)
	}

	if c.StartImageID < 0 {
		addf("start_image_id must not be negative, got %d", c.StartImageID)
	}
	if c.StartAnnotationID < 0 {
		addf("start_annotation_id must not be negative, got %d", c.StartAnnotationID)
	}

	seen := make(map[string]bool, len(c.LabelList))
	for _, l := range c.LabelList {
		if seen[l] {
			addf("label list contains %q more than once", l)
		}
		seen[l] = true
	}

	if name := strings.TrimSpace(c.DatasetName); name != "" && strings.ContainsAny(name, `/\`) {
		addf("dataset name must not contain path separators: %q", name)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SkipSplit reports whether the output format ignores train/val/test.
func (c Config) SkipSplit() bool {
	return c.OutputFormat == OutputLabelme
}

// HasTestSplit reports whether a test split is written.
func (c Config) HasTestSplit() bool {
	return !c.SkipSplit() && c.TestSize > 0
}

// OutputRoot is the directory the dataset folder is created in.
func (c Config) OutputRoot() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.InputDir
}

// DatasetFolderName returns the custom name when set, otherwise
// "<source>_<format>_<annotation>_<YYYYmmdd_HHMMSS>".
func (c Config) DatasetFolderName(now time.Time) string {
	if name := strings.TrimSpace(c.DatasetName); name != "" {
		return name
	}

	source := filepath.Base(filepath.Clean(c.InputDir))
	if source == "." || source == string(filepath.Separator) || source == "" {
		source = "dataset"
	}
	source = dataset.SanitizeFilename(source)
	return fmt.Sprintf("%s_%s_%s_%s", source, c.OutputFormat, c.AnnotationFormat, now.Format("20060102_150405"))
}
