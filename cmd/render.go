package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

var renderCmd = &cobra.Command{
	Use:   "render <latex>",
	Short: "Render one LaTeX expression to editor HTML",
	Long:  `Renders a LaTeX expression with the configured output format and prints the HTML an editor would insert. Engine failures print the raw-source placeholder.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := cfg.MathSettings()
		if err != nil {
			return err
		}
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			if settings.OutputFormat, err = mathrender.ParseFormat(f); err != nil {
				return err
			}
		}

		caps := loadEngines(cmd.Context(), nil)
		renderer := mathrender.NewRenderer(mathid.NewAllocator(mathid.NewRegistry(), nil), caps, newLogger())

		latex := strings.Join(args, " ")
		var res mathrender.Result
		if id, _ := cmd.Flags().GetString("id"); id != "" {
			res = renderer.RenderWithID(settings, id, latex)
		} else {
			res = renderer.Render(settings, latex)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Println(res.HTML)
		if verbose {
			fmt.Fprintf(os.Stderr, "%s (%s)\n", res.ID, res.Kind)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().String("format", "", "output format: mathlive, svg or png (overrides config)")
	renderCmd.Flags().String("id", "", "keep this math id instead of allocating one")
	renderCmd.Flags().Bool("json", false, "print the full render result as JSON")
	rootCmd.AddCommand(renderCmd)
}
