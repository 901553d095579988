package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/labelme-tools-mcp/internal/config"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// appConfig is loaded once per invocation, before any command runs.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "labelme-tools",
	Short: "Convert and inspect labelme annotation datasets",
	Long: `labelme-tools converts folders of labelme JSON annotations into YOLO and
COCO training datasets, or into a filtered labelme copy.

Available commands:
  convert  - Build a dataset from a labelme folder
  labels   - List the labels used in a folder
  counts   - Count annotations per label
  analyze  - Detect whether shapes are 2-point boxes, 4-point boxes or polygons
  serve    - Run the MCP server on stdin/stdout
  version  - Print version information

Settings come from (lowest precedence first) built-in defaults, --config,
LABELME_TOOLS_* environment variables and flags.

Examples:
  labelme-tools labels ./shots
  labelme-tools convert ./shots --format coco --val-size 0.1 --test-size 0.1
  labelme-tools serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		appConfig = cfg
		level := cfg.Log.Level
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		if err := logger.Initialize(cfg.Log.JSON, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.Version = Version

	rootCmd.PersistentFlags().String("config", "", "Config file (toml, yaml or json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().Int("workers", 0, "Scanner worker goroutines (default: number of CPUs)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(countsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config, the environment and the flags of cmd that map
// onto config keys.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(file)
	if err != nil {
		return nil, err
	}
	bind := map[string]string{
		"log.json":        "log-json",
		"scanner.workers": "workers",
	}
	for key, name := range convertFlagKeys {
		bind[key] = name
	}
	for key, name := range bind {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return config.Load(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
