package convert

import (
	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// MaxSampleRecords caps every sampled list in Stats (invalid annotations,
// background files, filtered-empty files). Counters are never capped.
const MaxSampleRecords = 100

// InvalidAnnotation records one shape rejected by validation.
type InvalidAnnotation struct {
	File        string `json:"file"`
	Label       string `json:"label"`
	Reason      string `json:"reason"`
	ShapeType   string `json:"shape_type"`
	PointsCount int    `json:"points_count"`
}

// Stats accumulates counts over one run.
type Stats struct {
	TotalFiles          int                 `json:"total_files"`
	ProcessedFiles      int                 `json:"processed_files"`
	SkippedFiles        int                 `json:"skipped_files"`
	FailedFiles         int                 `json:"failed_files"`
	TotalAnnotations    int                 `json:"total_annotations"`
	SkippedAnnotations  int                 `json:"skipped_annotations"`
	BackgroundImages    int                 `json:"background_images"`
	BackgroundFiles     []string            `json:"background_files"`
	FilteredEmptyImages int                 `json:"filtered_empty_images"`
	FilteredEmptyFiles  []string            `json:"filtered_empty_files"`
	LabelsFound         []string            `json:"labels_found"`
	SkippedLabels       []string            `json:"skipped_labels"`
	InvalidAnnotations  []InvalidAnnotation `json:"invalid_annotations"`
}

func newStats() Stats {
	return Stats{
		BackgroundFiles:    []string{},
		FilteredEmptyFiles: []string{},
		LabelsFound:        []string{},
		SkippedLabels:      []string{},
		InvalidAnnotations: []InvalidAnnotation{},
	}
}

func (s *Stats) addBackgroundFile(name string) {
	s.BackgroundImages++
	if len(s.BackgroundFiles) < MaxSampleRecords {
		s.BackgroundFiles = append(s.BackgroundFiles, name)
	}
}

func (s *Stats) addFilteredEmptyFile(name string) {
	s.FilteredEmptyImages++
	if len(s.FilteredEmptyFiles) < MaxSampleRecords {
		s.FilteredEmptyFiles = append(s.FilteredEmptyFiles, name)
	}
}

func (s *Stats) addInvalid(recs ...InvalidAnnotation) {
	for _, rec := range recs {
		if len(s.InvalidAnnotations) >= MaxSampleRecords {
			return
		}
		s.InvalidAnnotations = append(s.InvalidAnnotations, rec)
	}
}

// Result is the outcome of Convert. Success is false only when the run could
// not start (bad config, output directory not creatable); per-file failures
// are listed in Errors with Success still true.
type Result struct {
	Success     bool                `json:"success"`
	OutputDir   string              `json:"output_dir"`
	Stats       Stats               `json:"stats"`
	Errors      []string            `json:"errors"`
	RunID       string              `json:"run_id"`
	InputFormat labelme.InputFormat `json:"input_format,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// Degraded reports whether a successful run still hit per-file errors.
func (r Result) Degraded() bool {
	return r.Success && len(r.Errors) > 0
}

func failure(runID string, problems []string) Result {
	return Result{
		Success: false,
		Stats:   newStats(),
		Errors:  problems,
		RunID:   runID,
	}
}

// Rejected is the Result for a request that failed before a run started,
// e.g. a *ValidationError from Request.ToConfig.
func Rejected(err error) Result {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return failure("", verr.Problems)
	}
	return failure("", []string{err.Error()})
}
