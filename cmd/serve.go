package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/mathedit/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing LaTeX rendering, HTML math reconciliation and markdown conversion as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := cfg.MathSettings()
		if err != nil {
			return err
		}

		caps := loadEngines(cmd.Context(), nil)

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "mathedit MCP server started on stdio (format=%s)\n", settings.OutputFormat)

		// Stdout carries the protocol; pipeline logs go to stderr.
		var logger *log.Logger
		if verbose {
			logger = log.New(os.Stderr, "", log.LstdFlags)
		}
		srv := mcpserver.NewServer(caps, settings, logger)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
