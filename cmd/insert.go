package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/batch"
	"github.com/ziadkadry99/mathedit/internal/dialog"
	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
)

var insertCmd = &cobra.Command{
	Use:   "insert <file.html>",
	Short: "Insert or edit math in an HTML file from the terminal",
	Long: `Opens the math dialog in the terminal against an HTML file. New math is
appended at the end of the document; existing math is picked from a list and
rewritten in place with its id kept. Nothing is written until you save.`,
	Args: cobra.ExactArgs(1),
	RunE: runInsert,
}

func init() {
	rootCmd.AddCommand(insertCmd)
}

// mathChoice is one editable math node in the picker.
type mathChoice struct {
	ID    string
	Latex string
}

func runInsert(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	settings, err := cfg.MathSettings()
	if err != nil {
		return err
	}

	src, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	page, err := batch.ParsePage(string(src))
	if err != nil {
		return err
	}
	doc, err := document.Parse(path, page.Content())
	if err != nil {
		return err
	}

	logger := newLogger()
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	reconcile.AdoptIDs(doc, ids)
	caps := loadEngines(cmd.Context(), nil)

	ctrl := dialog.New(doc, mathrender.NewRenderer(ids, caps, logger), caps, dialog.Options{
		RerenderDelay: cfg.RerenderDelay(),
		Logger:        logger,
	})
	ctrl.Register()
	defer ctrl.Close()

	dirty := false
	for {
		menu := promptui.Select{
			Label: fmt.Sprintf("%s (%s)", path, settings.OutputFormat),
			Items: []string{"Insert math", "Edit math", "Save and quit", "Quit without saving"},
		}
		idx, _, err := menu.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("menu: %w", err)
		}

		switch idx {
		case 0:
			if err := doc.ExecCommand(dialog.CommandInsertMath); err != nil {
				return err
			}
		case 1:
			choice, ok, err := pickMath(doc)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := ctrl.Activate(doc.ElementByID(choice.ID)); err != nil {
				return err
			}
		case 2:
			if !dirty {
				fmt.Fprintln(os.Stderr, "No changes.")
				return nil
			}
			out, err := page.Render(doc.GetData())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "Saved %s\n", path)
			return nil
		default:
			return nil
		}

		res, err := promptMath(ctrl, settings)
		if err != nil {
			return err
		}
		if res != nil {
			dirty = true
			fmt.Fprintf(os.Stderr, "%s %s (%s)\n", res.ID, res.Latex, res.Kind)
		}
	}
}

// promptMath runs the open dialog's input. Enter confirms; Ctrl-C or
// Ctrl-D cancels and leaves the document untouched.
func promptMath(ctrl *dialog.Controller, s mathrender.Settings) (*mathrender.Result, error) {
	prompt := promptui.Prompt{
		Label:     "LaTeX",
		Default:   ctrl.Latex(),
		AllowEdit: true,
	}
	latex, err := prompt.Run()
	if err != nil {
		ctrl.HandleKey("Escape", s)
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("math input: %w", err)
	}
	if err := ctrl.SetLatex(latex); err != nil {
		return nil, err
	}
	return ctrl.HandleKey("Enter", s)
}

// pickMath lists the document's math nodes and returns the chosen one.
func pickMath(doc *document.Document) (mathChoice, bool, error) {
	var choices []mathChoice
	selector := "." + mathrender.ClassSource + "[id], ." + mathrender.ClassSVG + "[id], ." + mathrender.ClassPNG + "[id]"
	_ = doc.View(func(body *goquery.Selection) error {
		body.Find(selector).Each(func(_ int, el *goquery.Selection) {
			id, _ := el.Attr("id")
			latex := el.AttrOr(mathrender.AttrLatex, el.Text())
			choices = append(choices, mathChoice{ID: id, Latex: latex})
		})
		return nil
	})
	if len(choices) == 0 {
		fmt.Fprintln(os.Stderr, "No math in this document yet.")
		return mathChoice{}, false, nil
	}

	sel := promptui.Select{
		Label: "Math node",
		Items: choices,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "▸ {{ .ID | cyan }} {{ .Latex }}",
			Inactive: "  {{ .ID }} {{ .Latex }}",
			Selected: "{{ .ID | green }} {{ .Latex }}",
		},
	}
	idx, _, err := sel.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return mathChoice{}, false, nil
		}
		return mathChoice{}, false, fmt.Errorf("math picker: %w", err)
	}
	return choices[idx], true, nil
}
