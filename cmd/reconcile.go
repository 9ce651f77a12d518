package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/batch"
	"github.com/ziadkadry99/mathedit/internal/progress"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [dir]",
	Short: "Convert raw-source math to MathML in HTML and markdown files",
	Long: `Walks a directory (default: current) and upgrades every un-rendered math node
in HTML files to MathML, keeping the LaTeX source hidden next to it. Markdown
files are converted to HTML first and written next to the source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		opts := batch.Options{
			RootDir:     root,
			Include:     cfg.Batch.Include,
			Exclude:     cfg.Batch.Exclude,
			Concurrency: cfg.Batch.Concurrency,
		}
		opts.OutDir, _ = cmd.Flags().GetString("out")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.Incremental, _ = cmd.Flags().GetBool("incremental")
		if inc, _ := cmd.Flags().GetStringSlice("include"); len(inc) > 0 {
			opts.Include = inc
		}
		if exc, _ := cmd.Flags().GetStringSlice("exclude"); len(exc) > 0 {
			opts.Exclude = append(opts.Exclude, exc...)
		}
		if cmd.Flags().Changed("concurrency") {
			opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		caps := loadEngines(cmd.Context(), nil)
		runner := batch.NewRunner(caps, progress.NewReporter("Reconciling math"), newLogger())
		result, err := runner.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		written := 0
		for _, f := range result.Files {
			if f.Written {
				written++
			}
		}
		converted, failed := result.Totals()
		fmt.Fprintf(os.Stderr, "\nFiles: %d processed, %d written, %d unchanged since last run\n",
			len(result.Files), written, result.Skipped)
		fmt.Fprintf(os.Stderr, "Math: %d converted, %d failed\n", converted, failed)
		if verbose {
			for _, f := range result.Files {
				if len(f.Report.Failed) > 0 {
					fmt.Fprintf(os.Stderr, "  %s: failed %v\n", f.RelPath, f.Report.Failed)
				}
			}
		}
		if err := result.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Errors (%d):\n%v\n", len(result.Errors), err)
			return fmt.Errorf("%d files could not be reconciled", len(result.Errors))
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().String("out", "", "write results under this directory instead of in place")
	reconcileCmd.Flags().Bool("dry-run", false, "reconcile without writing files")
	reconcileCmd.Flags().Bool("incremental", false, "skip files unchanged since the last run")
	reconcileCmd.Flags().StringSlice("include", nil, "glob patterns to include (overrides config)")
	reconcileCmd.Flags().StringSlice("exclude", nil, "additional glob patterns to exclude")
	reconcileCmd.Flags().Int("concurrency", 4, "files processed in parallel (overrides config)")
	rootCmd.AddCommand(reconcileCmd)
}
