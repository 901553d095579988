package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/scanner"
	"github.com/ironsheep/labelme-tools-mcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Serve the labelme tools over the Model Context Protocol.

Requests are read from stdin and responses written to stdout, one JSON-RPC
message per line. Logs go to stderr. Configure the binary as a stdio server in
your MCP client.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		listings, err := newListingCache()
		if err != nil {
			return err
		}
		defer listings.Close()

		logger.Named("main").Infow("Starting MCP server",
			"version", Version, "build_time", BuildTime, "commit", GitCommit)

		srv := server.New(server.Options{
			Version:  Version,
			Defaults: appConfig.Convert,
			Analysis: appConfig.AnalysisConfig(),
			Scanner:  scanner.New(appConfig.ScannerConfig(), listings),
			Listings: listings,
			Dims:     imaging.NewDimensionCache(),
		})
		return srv.Run(ctx)
	},
}
