package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if asJSON(cmd) {
			_ = printJSON(cmd, map[string]string{
				"version":    Version,
				"build_time": BuildTime,
				"git_commit": GitCommit,
				"go":         runtime.Version(),
			})
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "labelme-tools %s\n", Version)
		fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Go: %s\n", runtime.Version())
	},
}

func init() {
	versionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
