package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mathedit",
	Short: "Math markup for rich-text documents",
	Long: `mathedit renders LaTeX into the HTML a rich-text editor stores: raw-source
placeholders, SVG or PNG images, or MathML produced by a reconciliation pass.
It serves a browser editor with an Insert Math dialog, reconciles math in
HTML and markdown files on disk, and exposes the pipeline to AI agents via MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
