package convert

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/detect"
	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
)

// ProgressEvent is the default event name for conversion progress.
const ProgressEvent = "convert-progress"

type runOptions struct {
	emitter  *progress.Emitter
	listings *dataset.ListingCache
	dims     *imaging.DimensionCache
	analysis detect.AnalysisConfig
	now      func() time.Time
}

// RunOption customizes a single Convert call.
type RunOption func(*runOptions)

// WithProgress streams progress events under the given name.
func WithProgress(event string, r progress.Reporter) RunOption {
	return func(o *runOptions) { o.emitter = progress.NewEmitter(event, r) }
}

// WithListingCache discovers annotation files through c.
func WithListingCache(c *dataset.ListingCache) RunOption {
	return func(o *runOptions) { o.listings = c }
}

// WithDimensionCache probes image sizes through c.
func WithDimensionCache(c *imaging.DimensionCache) RunOption {
	return func(o *runOptions) { o.dims = c }
}

// WithAnalysis overrides the sampling used for format detection.
func WithAnalysis(cfg detect.AnalysisConfig) RunOption {
	return func(o *runOptions) { o.analysis = cfg }
}

// WithClock replaces time.Now for folder naming and COCO metadata.
func WithClock(now func() time.Time) RunOption {
	return func(o *runOptions) { o.now = now }
}

// Convert runs a whole conversion. It never panics on bad input: config
// problems come back as a failed Result, per-file problems as entries in
// Result.Errors with Success still true.
func Convert(cfg Config, opts ...RunOption) Result {
	o := runOptions{analysis: detect.DefaultConfig(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dims == nil {
		o.dims = imaging.NewDimensionCache()
	}

	runID := uuid.New().String()
	log := logger.Named("convert").With(logger.FieldRunID, runID)
	em := o.emitter

	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		problems := []string{err.Error()}
		if errors.As(err, &verr) {
			problems = verr.Problems
		}
		log.Warnw("Rejected conversion config", logger.FieldError, err)
		em.Error(err.Error())
		return failure(runID, problems)
	}

	start := o.now()
	base, err := filepath.Abs(filepath.Join(cfg.OutputRoot(), cfg.DatasetFolderName(start)))
	if err != nil {
		em.Error(err.Error())
		return failure(runID, []string{err.Error()})
	}

	var files []string
	if o.listings != nil {
		files = o.listings.JSONFiles(cfg.InputDir, base)
	} else {
		files = dataset.FindJSONFiles(cfg.InputDir, base)
	}

	format := cfg.DetectedFormat
	if format == "" {
		analysis := detect.AnalyzeFiles(files, o.analysis)
		format = analysis.InputFormat
		log.Infow("Detected input format",
			logger.FieldFormat, format,
			"confidence", analysis.Confidence,
			"description", analysis.FormatDescription)
	}

	p := newPipeline(cfg)
	layout, err := p.setup(cfg, base)
	if err != nil {
		msg := fmt.Sprintf("Failed to create output directories: %v", err)
		em.Error(msg)
		return failure(runID, []string{msg})
	}

	ctx := newContext(cfg)
	if cfg.DeterministicLabels && len(cfg.LabelList) == 0 {
		ctx.gatherLabels(files)
	}

	r := &run{
		cfg:    cfg,
		ctx:    ctx,
		layout: layout,
		format: format,
		dims:   o.dims,
		log:    log,
		start:  start,
	}

	log.Infow("Starting conversion",
		logger.FieldDir, cfg.InputDir,
		"output", base,
		"output_format", cfg.OutputFormat,
		logger.FieldCount, len(files))

	stats := &ctx.Stats
	stats.TotalFiles = len(files)
	for i, path := range files {
		res, err := p.process(r, path)
		switch {
		case err != nil:
			stats.FailedFiles++
			ctx.addError(path, err)
			log.Debugw("File failed", logger.FieldFile, path, logger.FieldError, err)
		case res.status == statusDuplicate:
			stats.SkippedFiles++
		case res.status == statusAllInvalid:
			stats.SkippedFiles++
			stats.SkippedAnnotations += res.skipped
			stats.addInvalid(res.invalid...)
		default:
			stats.ProcessedFiles++
			stats.TotalAnnotations += res.annotations
			stats.SkippedAnnotations += res.skipped
			stats.addInvalid(res.invalid...)
			if res.filteredEmpty {
				stats.addFilteredEmptyFile(filepath.Base(path))
			}
		}
		em.Tick(i+1, len(files), fmt.Sprintf("Converted %d of %d files", i+1, len(files)))
	}

	if cfg.IncludeBackground {
		for _, img := range dataset.FindBackgroundImages(cfg.InputDir, ctx.Processed(), base) {
			if err := p.background(r, img); err != nil {
				ctx.addError(img, err)
				continue
			}
			stats.addBackgroundFile(filepath.Base(img))
		}
	}

	stats.LabelsFound = ctx.Labels()
	stats.SkippedLabels = ctx.SkippedLabels()
	if stats.LabelsFound == nil {
		stats.LabelsFound = []string{}
	}
	if stats.SkippedLabels == nil {
		stats.SkippedLabels = []string{}
	}

	if err := p.finalize(r); err != nil {
		ctx.Errors = append(ctx.Errors, err.Error())
	}

	result := Result{
		Success:     true,
		OutputDir:   base,
		Stats:       *stats,
		Errors:      ctx.Errors,
		RunID:       runID,
		InputFormat: format,
	}
	if stats.TotalFiles == 0 {
		result.Message = "no files found"
	}

	log.Infow("Conversion finished",
		"processed", stats.ProcessedFiles,
		"skipped", stats.SkippedFiles,
		"failed", stats.FailedFiles,
		"annotations", stats.TotalAnnotations,
		logger.FieldDuration, o.now().Sub(start))
	em.Complete(fmt.Sprintf("Converted %d files", stats.ProcessedFiles))
	return result
}

// QuickYOLO converts inputDir to a YOLO dataset with default settings.
func QuickYOLO(inputDir string, annotation AnnotationFormat) Result {
	cfg := DefaultConfig(inputDir)
	cfg.AnnotationFormat = annotation
	return Convert(cfg)
}

// QuickCOCO converts inputDir to a COCO dataset with default settings.
func QuickCOCO(inputDir string) Result {
	cfg := DefaultConfig(inputDir)
	cfg.OutputFormat = OutputCOCO
	return Convert(cfg)
}
