package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
	"github.com/ironsheep/labelme-tools-mcp/internal/scanner"
)

var labelsCmd = &cobra.Command{
	Use:   "labels <input-dir>",
	Short: "List the distinct labels used in a labelme folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, em, done, err := newScan(cmd, "labels")
		if err != nil {
			return err
		}
		defer done()

		labels, err := s.Labels(args[0], em)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(cmd, map[string]interface{}{"labels": labels, "count": len(labels)})
		}
		for _, l := range labels {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts <input-dir>",
	Short: "Count annotations per label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, em, done, err := newScan(cmd, "counts")
		if err != nil {
			return err
		}
		defer done()

		counts, err := s.LabelCounts(args[0], em)
		if err != nil {
			return err
		}
		rows := scanner.Summarize(counts)
		if asJSON(cmd) {
			return printJSON(cmd, rows)
		}

		data := pterm.TableData{{"Label", "Annotations"}}
		total := 0
		for _, r := range rows {
			label := r.Label
			if rgb, err := pterm.NewRGBFromHEX(r.Color); err == nil {
				label = rgb.Sprint(r.Label)
			}
			data = append(data, []string{label, fmt.Sprint(r.Count)})
			total += r.Count
		}
		data = append(data, []string{"total", fmt.Sprint(total)})
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input-dir>",
	Short: "Detect whether shapes are 2-point boxes, 4-point boxes or polygons",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, em, done, err := newScan(cmd, "analyze")
		if err != nil {
			return err
		}
		defer done()

		analysis, err := s.AnalyzeFormat(args[0], em)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(cmd, analysis)
		}

		pterm.Info.Printfln("Format: %s (confidence %.1f%%)", analysis.InputFormat, analysis.Confidence*100)
		pterm.Printfln("%s", analysis.FormatDescription)
		pterm.Printfln("Sampled %d of %d files, %d annotations", analysis.SampleFiles, analysis.TotalFiles, analysis.SampleAnnotations)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{labelsCmd, countsCmd, analyzeCmd} {
		c.Flags().Bool("json", false, "Print the result as JSON")
	}
}

// newScan builds a scanner from the loaded config. Progress goes to a
// terminal spinner unless --json is set. done releases both.
func newScan(cmd *cobra.Command, title string) (*scanner.Scanner, *progress.Emitter, func(), error) {
	listings, err := newListingCache()
	if err != nil {
		return nil, nil, nil, err
	}
	s := scanner.New(appConfig.ScannerConfig(), listings)

	if asJSON(cmd) {
		return s, nil, func() { _ = listings.Close() }, nil
	}
	spinner := progress.NewSpinner(title)
	done := func() {
		spinner.Stop()
		_ = listings.Close()
	}
	sink := progress.Multi(spinner, progress.LogReporter(logger.Named("progress")))
	return s, progress.NewEmitter(title, sink), done, nil
}

// newListingCache honours the cache section of the config.
func newListingCache() (*dataset.ListingCache, error) {
	c := dataset.NewListingCache(appConfig.Cache.ListingTTL)
	if appConfig.Cache.Watch {
		if err := c.Watch(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
