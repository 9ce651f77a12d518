package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/content"
	"github.com/ziadkadry99/mathedit/internal/db"
	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/markdown"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
)

var importCmd = &cobra.Command{
	Use:   "import <file.md>",
	Short: "Convert a markdown file with $ math into editor HTML",
	Long: `Converts markdown to the HTML the editor stores, turning $...$ and $$...$$
into raw-source math nodes. The result is printed, written to --out, or saved
as a new document in the content store with --save.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		doc, err := markdown.NewConverter().Convert(src)
		if err != nil {
			return err
		}

		if render, _ := cmd.Flags().GetBool("mathml"); render {
			if doc.HTML, err = reconcileMarkup(cmd.Context(), args[0], doc.HTML); err != nil {
				return err
			}
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			c := markdown.ToContent(doc)
			if err := content.NewStore(database).Create(cmd.Context(), c); err != nil {
				return fmt.Errorf("saving document: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Saved %q as %s\n", c.Title, c.ID)
			return nil
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := os.WriteFile(out, []byte(doc.HTML), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
			return nil
		}
		fmt.Print(doc.HTML)
		return nil
	},
}

// reconcileMarkup runs one reconciliation pass over markup.
func reconcileMarkup(ctx context.Context, name, markup string) (string, error) {
	doc, err := document.Parse(name, markup)
	if err != nil {
		return "", err
	}
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	reconcile.AdoptIDs(doc, ids)
	report := reconcile.New(ids, loadEngines(ctx, nil), newLogger()).Reconcile(doc, "")
	if report.EngineUnavailable {
		fmt.Fprintln(os.Stderr, "Warning: math engine unavailable; math left as source")
	} else if len(report.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d expressions could not be converted: %v\n", len(report.Failed), report.Failed)
	}
	return doc.GetData(), nil
}

func init() {
	importCmd.Flags().String("out", "", "write HTML to this file instead of stdout")
	importCmd.Flags().Bool("save", false, "save as a new document in the content store")
	importCmd.Flags().Bool("mathml", false, "also convert math to MathML")
	rootCmd.AddCommand(importCmd)
}
