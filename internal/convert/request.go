package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// Request is the wire form of a conversion: string enums and JSON defaults.
// It is what the MCP tool and the config file carry.
type Request struct {
	InputDir            string   `json:"input_dir" mapstructure:"input_dir"`
	OutputDir           string   `json:"output_dir,omitempty" mapstructure:"output_dir"`
	CustomDatasetName   string   `json:"custom_dataset_name,omitempty" mapstructure:"custom_dataset_name"`
	OutputFormat        string   `json:"output_format" mapstructure:"output_format"`
	AnnotationFormat    string   `json:"annotation_format" mapstructure:"annotation_format"`
	ValSize             float64  `json:"val_size" mapstructure:"val_size"`
	TestSize            float64  `json:"test_size" mapstructure:"test_size"`
	Seed                uint64   `json:"seed" mapstructure:"seed"`
	IncludeBackground   bool     `json:"include_background" mapstructure:"include_background"`
	LabelList           []string `json:"label_list" mapstructure:"label_list"`
	DeterministicLabels bool     `json:"deterministic_labels" mapstructure:"deterministic_labels"`
	SegmentationMode    string   `json:"segmentation_mode" mapstructure:"segmentation_mode"`
	StartImageID        int      `json:"start_image_id" mapstructure:"start_image_id"`
	StartAnnotationID   int      `json:"start_annotation_id" mapstructure:"start_annotation_id"`
	RemoveImageData     bool     `json:"remove_image_data" mapstructure:"remove_image_data"`
	LabelmeOutputFormat string   `json:"labelme_output_format" mapstructure:"labelme_output_format"`
	InputFormat         string   `json:"input_format,omitempty" mapstructure:"input_format"`
}

// DefaultRequest returns a request with every default filled in.
func DefaultRequest() Request {
	return Request{
		OutputFormat:        string(OutputYOLO),
		AnnotationFormat:    string(AnnotationBbox),
		ValSize:             DefaultValSize,
		Seed:                DefaultSeed,
		SegmentationMode:    string(SegmentationPolygon),
		StartImageID:        DefaultStartID,
		StartAnnotationID:   DefaultStartID,
		LabelmeOutputFormat: string(ShapesOriginal),
	}
}

// UnmarshalJSON fills fields absent from data with their defaults.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	req := plain(DefaultRequest())
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	*r = Request(req)
	return nil
}

// ToConfig parses the string enums and validates the result. Unknown enum
// values and config violations are reported together in one
// *ValidationError.
func (r Request) ToConfig() (Config, error) {
	var problems []string

	outputFormat, err := parseOutputFormat(r.OutputFormat)
	if err != nil {
		problems = append(problems, err.Error())
	}
	annotationFormat, err := parseAnnotationFormat(r.AnnotationFormat)
	if err != nil {
		problems = append(problems, err.Error())
	}
	segmentation, err := parseSegmentationMode(r.SegmentationMode)
	if err != nil {
		problems = append(problems, err.Error())
	}
	shapes, err := parseLabelmeShapes(r.LabelmeOutputFormat)
	if err != nil {
		problems = append(problems, err.Error())
	}
	inputFormat, err := parseInputFormat(r.InputFormat)
	if err != nil {
		problems = append(problems, err.Error())
	}

	cfg := Config{
		InputDir:            r.InputDir,
		OutputDir:           r.OutputDir,
		DatasetName:         r.CustomDatasetName,
		OutputFormat:        outputFormat,
		AnnotationFormat:    annotationFormat,
		ValSize:             r.ValSize,
		TestSize:            r.TestSize,
		Seed:                r.Seed,
		LabelList:           cleanLabels(r.LabelList),
		DeterministicLabels: r.DeterministicLabels,
		IncludeBackground:   r.IncludeBackground,
		SegmentationMode:    segmentation,
		StartImageID:        r.StartImageID,
		StartAnnotationID:   r.StartAnnotationID,
		RemoveImageData:     r.RemoveImageData,
		LabelmeShapes:       shapes,
		DetectedFormat:      inputFormat,
	}

	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				if !strings.HasPrefix(p, "unknown ") {
					problems = append(problems, p)
				}
			}
		}
	}
	if len(problems) > 0 {
		return Config{}, &ValidationError{Problems: problems}
	}
	return cfg, nil
}

func cleanLabels(labels []string) []string {
	var out []string
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yolo":
		return OutputYOLO, nil
	case "coco":
		return OutputCOCO, nil
	case "labelme":
		return OutputLabelme, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

func parseAnnotationFormat(s string) (AnnotationFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bbox":
		return AnnotationBbox, nil
	case "polygon":
		return AnnotationPolygon, nil
	}
	return "", fmt.Errorf("unknown annotation format: %s", s)
}

func parseSegmentationMode(s string) (SegmentationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "polygon":
		return SegmentationPolygon, nil
	case "bbox_only", "bboxonly":
		return SegmentationBboxOnly, nil
	}
	return "", fmt.Errorf("unknown segmentation mode: %s", s)
}

func parseLabelmeShapes(s string) (LabelmeShapes, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original":
		return ShapesOriginal, nil
	case "bbox_2point", "bbox2point":
		return ShapesBbox2Point, nil
	case "bbox_4point", "bbox4point":
		return ShapesBbox4Point, nil
	}
	return "", fmt.Errorf("unknown labelme output format: %s", s)
}

func parseInputFormat(s string) (labelme.InputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", nil
	case "bbox_2point", "bbox2point":
		return labelme.FormatBbox2Point, nil
	case "bbox_4point", "bbox4point":
		return labelme.FormatBbox4Point, nil
	case "polygon":
		return labelme.FormatPolygon, nil
	case "unknown":
		return labelme.FormatUnknown, nil
	}
	return "", fmt.Errorf("unknown input format: %s", s)
}
