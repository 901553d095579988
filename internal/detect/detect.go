// Package detect infers the annotation encoding of a labelme dataset by
// sampling shapes and looking at how many points they carry.
package detect

import (
	"fmt"
	"math"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// Sampling defaults used by DefaultConfig.
const (
	// DefaultMaxSampleFiles is how many annotation files are read.
	DefaultMaxSampleFiles = 20
	// DefaultMaxSampleAnnotations stops sampling once this many shapes are seen.
	DefaultMaxSampleAnnotations = 100
	// DefaultConfidenceThreshold is the share a point-count class needs to win.
	DefaultConfidenceThreshold = 0.8
)

// AnalysisConfig bounds the sample and sets the ratio a point-count class must
// reach to decide the format.
type AnalysisConfig struct {
	MaxSampleFiles       int     `json:"max_sample_files"`
	MaxSampleAnnotations int     `json:"max_sample_annotations"`
	ConfidenceThreshold  float64 `json:"confidence_threshold"`
}

// DefaultConfig returns the standard sampling configuration.
func DefaultConfig() AnalysisConfig {
	return AnalysisConfig{
		MaxSampleFiles:       DefaultMaxSampleFiles,
		MaxSampleAnnotations: DefaultMaxSampleAnnotations,
		ConfidenceThreshold:  DefaultConfidenceThreshold,
	}
}

func (c AnalysisConfig) withDefaults() AnalysisConfig {
	d := DefaultConfig()
	if c.MaxSampleFiles <= 0 {
		c.MaxSampleFiles = d.MaxSampleFiles
	}
	if c.MaxSampleAnnotations <= 0 {
		c.MaxSampleAnnotations = d.MaxSampleAnnotations
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	return c
}

// DatasetAnalysis is the outcome of sampling a dataset.
type DatasetAnalysis struct {
	InputFormat        labelme.InputFormat `json:"input_format"`
	TotalFiles         int                 `json:"total_files"`
	SampleFiles        int                 `json:"sample_files"`
	SampleAnnotations  int                 `json:"sample_annotations"`
	Confidence         float64             `json:"confidence"`
	PointsDistribution map[int]int         `json:"points_distribution"`
	FormatDescription  string              `json:"format_description"`
}

// Analyze samples the JSON files under dir.
func Analyze(dir string, cfg AnalysisConfig) DatasetAnalysis {
	return AnalyzeFiles(dataset.FindJSONFiles(dir), cfg)
}

// AnalyzeFiles samples an already discovered file list. Shapes are collected
// from the first MaxSampleFiles files until at least MaxSampleAnnotations have
// been gathered; files that cannot be read are skipped.
func AnalyzeFiles(files []string, cfg AnalysisConfig) DatasetAnalysis {
	cfg = cfg.withDefaults()

	if len(files) == 0 {
		return DatasetAnalysis{
			InputFormat:        labelme.FormatUnknown,
			PointsDistribution: map[int]int{},
			FormatDescription:  "no JSON files found",
		}
	}

	sampleFiles := min(len(files), cfg.MaxSampleFiles)

	var shapes []labelme.Shape
	for _, path := range files[:sampleFiles] {
		ann, err := labelme.ReadFile(path)
		if err != nil {
			continue
		}
		shapes = append(shapes, ann.Shapes...)
		if len(shapes) >= cfg.MaxSampleAnnotations {
			break
		}
	}

	return AnalyzeShapes(shapes, len(files), sampleFiles, cfg)
}

// AnalyzeShapes decides the format from a shape sample. Only the first
// MaxSampleAnnotations shapes contribute to the histogram.
func AnalyzeShapes(shapes []labelme.Shape, totalFiles, sampleFiles int, cfg AnalysisConfig) DatasetAnalysis {
	cfg = cfg.withDefaults()

	analysis := DatasetAnalysis{
		InputFormat:        labelme.FormatUnknown,
		TotalFiles:         totalFiles,
		SampleFiles:        sampleFiles,
		PointsDistribution: map[int]int{},
	}
	if len(shapes) == 0 {
		analysis.FormatDescription = "no annotations found"
		return analysis
	}

	sampled := min(len(shapes), cfg.MaxSampleAnnotations)
	for _, s := range shapes[:sampled] {
		analysis.PointsDistribution[len(s.Points)]++
	}
	analysis.SampleAnnotations = sampled

	analysis.InputFormat, analysis.Confidence, analysis.FormatDescription =
		classify(analysis.PointsDistribution, sampled, cfg.ConfidenceThreshold)
	return analysis
}

// classify applies the ratio rules in a fixed order; the first rule that
// holds decides the format.
func classify(dist map[int]int, total int, threshold float64) (labelme.InputFormat, float64, string) {
	var count3Plus, distinct3Plus int
	for points, n := range dist {
		if points >= 3 && n > 0 {
			count3Plus += n
			distinct3Plus++
		}
	}

	ratio2 := float64(dist[2]) / float64(total)
	ratio4 := float64(dist[4]) / float64(total)
	ratio3Plus := float64(count3Plus) / float64(total)

	bbox4 := func() (labelme.InputFormat, float64, string) {
		return labelme.FormatBbox4Point, ratio4,
			fmt.Sprintf("4-point bounding boxes (corner representation), %.1f%% of annotations match", ratio4*100)
	}

	switch {
	case ratio2 >= threshold:
		return labelme.FormatBbox2Point, ratio2,
			fmt.Sprintf("2-point bounding boxes (diagonal representation), %.1f%% of annotations match", ratio2*100)

	case ratio4 >= threshold:
		return bbox4()

	case ratio3Plus >= threshold:
		if distinct3Plus > 1 {
			return labelme.FormatPolygon, ratio3Plus,
				fmt.Sprintf("polygons (variable point count), %.1f%% of annotations have 3 or more points", ratio3Plus*100)
		}
		if ratio4 > 0.5 {
			return bbox4()
		}
		return labelme.FormatPolygon, ratio3Plus,
			fmt.Sprintf("polygons, %.1f%% of annotations have 3 or more points", ratio3Plus*100)
	}

	maxRatio := math.Max(ratio2, math.Max(ratio4, ratio3Plus))
	return labelme.FormatUnknown, maxRatio,
		fmt.Sprintf("mixed or unknown format (2-point: %.1f%%, 4-point: %.1f%%, 3+ points: %.1f%%)",
			ratio2*100, ratio4*100, ratio3Plus*100)
}
