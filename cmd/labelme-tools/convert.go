package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ironsheep/labelme-tools-mcp/internal/convert"
	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
)

// convertFlagKeys maps config keys to the convert flags that override them.
var convertFlagKeys = map[string]string{
	"convert.output_dir":            "output",
	"convert.custom_dataset_name":   "name",
	"convert.output_format":         "format",
	"convert.annotation_format":     "annotation",
	"convert.val_size":              "val-size",
	"convert.test_size":             "test-size",
	"convert.seed":                  "seed",
	"convert.include_background":    "background",
	"convert.label_list":            "labels",
	"convert.deterministic_labels":  "deterministic",
	"convert.segmentation_mode":     "segmentation",
	"convert.start_image_id":        "start-image-id",
	"convert.start_annotation_id":   "start-annotation-id",
	"convert.remove_image_data":     "remove-image-data",
	"convert.labelme_output_format": "labelme-shapes",
	"convert.input_format":          "input-format",
}

var convertCmd = &cobra.Command{
	Use:   "convert <input-dir>",
	Short: "Build a YOLO, COCO or labelme dataset from a labelme folder",
	Long: `Convert every labelme JSON file under <input-dir> into a new dataset folder.

The folder is created under --output (default: <input-dir>) and named
<input>_<format>_<annotation>_<timestamp> unless --name is given.`,
	Example: `  labelme-tools convert ./shots
  labelme-tools convert ./shots --format coco --segmentation bbox_only
  labelme-tools convert ./shots --labels-file classes.txt --background`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	def := convert.DefaultRequest()
	f := convertCmd.Flags()
	f.StringP("output", "o", "", "Directory the dataset folder is created in")
	f.String("name", "", "Dataset folder name")
	f.StringP("format", "f", def.OutputFormat, "Output format: yolo, coco or labelme")
	f.StringP("annotation", "a", def.AnnotationFormat, "YOLO geometry: bbox or polygon")
	f.Float64("val-size", def.ValSize, "Validation fraction")
	f.Float64("test-size", def.TestSize, "Test fraction")
	f.Uint64("seed", def.Seed, "Seed recorded with the run")
	f.Bool("background", false, "Also export images without annotations")
	f.StringSlice("labels", nil, "Allowed labels in class id order")
	f.String("labels-file", "", "File with one allowed label per line")
	f.Bool("deterministic", false, "Assign class ids from the sorted label set")
	f.String("segmentation", def.SegmentationMode, "COCO segmentation: polygon or bbox_only")
	f.Int("start-image-id", def.StartImageID, "First COCO image id")
	f.Int("start-annotation-id", def.StartAnnotationID, "First COCO annotation id")
	f.Bool("remove-image-data", false, "Strip embedded image data from labelme output")
	f.String("labelme-shapes", def.LabelmeOutputFormat, "labelme output shapes: original, bbox_2point or bbox_4point")
	f.String("input-format", "", "Skip detection: bbox_2point, bbox_4point, polygon or unknown")
	f.Bool("json", false, "Print the result as JSON")
}

func runConvert(cmd *cobra.Command, args []string) error {
	req := appConfig.Convert
	req.InputDir = args[0]

	if path, _ := cmd.Flags().GetString("labels-file"); path != "" {
		labels, err := dataset.ReadLabelFile(path)
		if err != nil {
			return err
		}
		req.LabelList = labels
	}

	cfg, err := req.ToConfig()
	if err != nil {
		return err
	}

	listings, err := newListingCache()
	if err != nil {
		return err
	}
	defer listings.Close()

	jsonOutput := asJSON(cmd)
	opts := []convert.RunOption{
		convert.WithListingCache(listings),
		convert.WithAnalysis(appConfig.AnalysisConfig()),
	}
	if !jsonOutput {
		spinner := progress.NewSpinner("convert")
		defer spinner.Stop()
		opts = append(opts, convert.WithProgress(convert.ProgressEvent,
			progress.Multi(spinner, progress.LogReporter(logger.Named("progress")))))
	}

	result := convert.Convert(cfg, opts...)

	if jsonOutput {
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	} else {
		printResult(result)
	}

	if !result.Success {
		return errors.Newf("conversion failed: %s", strings.Join(result.Errors, "; "))
	}
	return nil
}

func printResult(r convert.Result) {
	if !r.Success {
		return
	}

	pterm.Println()
	pterm.Success.Printfln("Dataset written to %s", r.OutputDir)
	if r.Message != "" {
		pterm.Info.Println(r.Message)
	}

	st := r.Stats
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Input format", string(r.InputFormat)},
		{"Files", fmt.Sprint(st.TotalFiles)},
		{"Processed", fmt.Sprint(st.ProcessedFiles)},
		{"Skipped", fmt.Sprint(st.SkippedFiles)},
		{"Failed", fmt.Sprint(st.FailedFiles)},
		{"Annotations", fmt.Sprint(st.TotalAnnotations)},
		{"Skipped annotations", fmt.Sprint(st.SkippedAnnotations)},
		{"Background images", fmt.Sprint(st.BackgroundImages)},
		{"Filtered empty images", fmt.Sprint(st.FilteredEmptyImages)},
		{"Labels", strings.Join(st.LabelsFound, ", ")},
	}
	if len(st.SkippedLabels) > 0 {
		data = append(data, []string{"Skipped labels", strings.Join(st.SkippedLabels, ", ")})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if len(st.InvalidAnnotations) > 0 {
		pterm.Warning.Println(invalidHeading(st))
		for _, inv := range st.InvalidAnnotations {
			pterm.Printfln("  %s [%s] %s", inv.File, inv.Label, inv.Reason)
		}
	}
	if r.Degraded() {
		pterm.Warning.Printfln("%d files failed:", len(r.Errors))
		for _, e := range r.Errors {
			pterm.Printfln("  %s", e)
		}
	}
}

// invalidHeading counts only validation failures; shapes dropped by the
// label allow-list are in SkippedAnnotations too.
func invalidHeading(st convert.Stats) string {
	n := len(st.InvalidAnnotations)
	if n < convert.MaxSampleRecords {
		return fmt.Sprintf("%d invalid annotations:", n)
	}
	return fmt.Sprintf("At least %d invalid annotations (first %d shown):", n, n)
}
