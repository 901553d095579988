// Package scanner provides read-only previews of a labelme dataset: the label
// set, per-label annotation counts and the detected input format.
//
// Scans run file reads in parallel. Each worker folds its share of the files
// into a private partial result and the partials are merged once all workers
// finish. A file that cannot be read or parsed contributes nothing; it never
// fails the scan.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/detect"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
)

// Config sizes the scanner.
type Config struct {
	// Workers is the number of goroutines reading files within one scan.
	Workers int
	// MaxJobs bounds how many async scans run at once; further jobs queue.
	MaxJobs int64
	// Analysis is the sampling used by AnalyzeFormat.
	Analysis detect.AnalysisConfig
}

// DefaultConfig returns one worker per CPU and four concurrent jobs.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MaxJobs:  4,
		Analysis: detect.DefaultConfig(),
	}
}

// Scanner runs scans, synchronously or as background jobs.
type Scanner struct {
	cfg      Config
	jobs     *semaphore.Weighted
	listings *dataset.ListingCache
	log      *zap.SugaredLogger
}

// New returns a scanner. listings may be nil, in which case every scan walks
// the directory.
func New(cfg Config, listings *dataset.ListingCache) *Scanner {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = def.MaxJobs
	}
	return &Scanner{
		cfg:      cfg,
		jobs:     semaphore.NewWeighted(cfg.MaxJobs),
		listings: listings,
		log:      logger.Named("scanner"),
	}
}

func (s *Scanner) jsonFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Newf("directory does not exist: %s", dir)
	}
	if s.listings != nil {
		return s.listings.JSONFiles(dir), nil
	}
	return dataset.FindJSONFiles(dir), nil
}

// Labels returns the sorted set of labels used in dir.
func (s *Scanner) Labels(dir string, em *progress.Emitter) ([]string, error) {
	files, err := s.jsonFiles(dir)
	if err != nil {
		em.Error(err.Error())
		return nil, err
	}
	if len(files) == 0 {
		em.Complete("No JSON files found")
		return []string{}, nil
	}

	em.Emit(0, len(files), "Scanning labels...")
	partials := fold(s.cfg.Workers, files, em, "Scanned %d / %d files",
		func() map[string]struct{} { return make(map[string]struct{}) },
		func(set map[string]struct{}, labels []string) {
			for _, l := range labels {
				set[l] = struct{}{}
			}
		})

	merged := make(map[string]struct{})
	for _, p := range partials {
		for l := range p {
			merged[l] = struct{}{}
		}
	}
	labels := make([]string, 0, len(merged))
	for l := range merged {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	s.log.Debugw("Scanned labels", logger.FieldDir, dir, logger.FieldCount, len(labels))
	em.Complete(fmt.Sprintf("Scan complete, found %d labels", len(labels)))
	return labels, nil
}

// LabelCounts returns the number of shapes per label in dir.
func (s *Scanner) LabelCounts(dir string, em *progress.Emitter) (map[string]int, error) {
	files, err := s.jsonFiles(dir)
	if err != nil {
		em.Error(err.Error())
		return nil, err
	}
	if len(files) == 0 {
		em.Complete("No JSON files found")
		return map[string]int{}, nil
	}

	em.Emit(0, len(files), "Counting labels...")
	partials := fold(s.cfg.Workers, files, em, "Counted %d / %d files",
		func() map[string]int { return make(map[string]int) },
		func(counts map[string]int, labels []string) {
			for _, l := range labels {
				counts[l]++
			}
		})

	merged := make(map[string]int)
	total := 0
	for _, p := range partials {
		for l, n := range p {
			merged[l] += n
			total += n
		}
	}

	s.log.Debugw("Counted labels", logger.FieldDir, dir, logger.FieldCount, len(merged), "annotations", total)
	em.Complete(fmt.Sprintf("Count complete, %d labels, %d annotations", len(merged), total))
	return merged, nil
}

// AnalyzeFormat samples dir and reports the detected input format.
func (s *Scanner) AnalyzeFormat(dir string, em *progress.Emitter) (detect.DatasetAnalysis, error) {
	files, err := s.jsonFiles(dir)
	if err != nil {
		em.Error(err.Error())
		return detect.DatasetAnalysis{}, err
	}

	em.Emit(0, 100, "Analyzing dataset format...")
	em.Emit(30, 100, "Reading sample files...")
	analysis := detect.AnalyzeFiles(files, s.cfg.Analysis)
	em.Emit(80, 100, "Computing confidence...")

	em.Complete(fmt.Sprintf("Format analysis complete: %s (confidence %.1f%%)",
		analysis.FormatDescription, analysis.Confidence*100))
	return analysis, nil
}

// LabelsAsync runs Labels as a background job.
func (s *Scanner) LabelsAsync(ctx context.Context, dir string, em *progress.Emitter) *Job[[]string] {
	return start(ctx, s, "labels", func() ([]string, error) { return s.Labels(dir, em) })
}

// LabelCountsAsync runs LabelCounts as a background job.
func (s *Scanner) LabelCountsAsync(ctx context.Context, dir string, em *progress.Emitter) *Job[map[string]int] {
	return start(ctx, s, "label-counts", func() (map[string]int, error) { return s.LabelCounts(dir, em) })
}

// AnalyzeFormatAsync runs AnalyzeFormat as a background job.
func (s *Scanner) AnalyzeFormatAsync(ctx context.Context, dir string, em *progress.Emitter) *Job[detect.DatasetAnalysis] {
	return start(ctx, s, "analyze-format", func() (detect.DatasetAnalysis, error) { return s.AnalyzeFormat(dir, em) })
}

// start queues fn for a job slot. ctx is consulted only while waiting for the
// slot: a job that has started is never interrupted.
func start[T any](ctx context.Context, s *Scanner, name string, fn func() (T, error)) *Job[T] {
	job := newJob[T](name)
	log := s.log.With(logger.FieldJobID, job.ID, "job", name)

	go func() {
		var zero T
		err := ctx.Err()
		if err == nil {
			err = s.jobs.Acquire(ctx, 1)
		}
		if err != nil {
			log.Debugw("Scan cancelled before start", logger.FieldError, err)
			job.finish(zero, errors.Wrap(err, "scan cancelled before start"), JobStatusCancelled)
			return
		}
		defer s.jobs.Release(1)

		job.start()
		result, err := fn()
		if err != nil {
			job.finish(zero, err, JobStatusFailed)
			return
		}
		job.finish(result, nil, JobStatusCompleted)
		log.Debugw("Scan finished", logger.FieldDuration, job.Duration())
	}()
	return job
}

// fold splits files over workers. Each worker folds the labels of its files
// into its own partial; the caller merges the returned partials. done is
// shared so progress reflects files finished across all workers.
func fold[P any](workers int, files []string, em *progress.Emitter, format string, newPartial func() P, add func(P, []string)) []P {
	workers = min(workers, len(files))
	partials := make([]P, workers)
	total := len(files)
	var done atomic.Int64

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			partial := newPartial()
			for i := w; i < total; i += workers {
				if labels, err := readLabels(files[i]); err == nil {
					add(partial, labels)
				}
				n := int(done.Add(1))
				em.Tick(n, total, fmt.Sprintf(format, n, total))
			}
			partials[w] = partial
			return nil
		})
	}
	_ = g.Wait()
	return partials
}

// labelDoc is the part of a labelme document a scan needs. Decoding only the
// labels keeps a file with malformed points countable.
type labelDoc struct {
	Shapes []struct {
		Label *string `json:"label"`
	} `json:"shapes"`
}

func readLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc labelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(doc.Shapes))
	for _, s := range doc.Shapes {
		if s.Label != nil {
			labels = append(labels, *s.Label)
		}
	}
	return labels, nil
}
