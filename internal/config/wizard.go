package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// formatChoices pairs wizard labels with output_format values.
var formatChoices = []struct {
	Label  string
	Format string
	Engine bool
}{
	{"svg     : MathML drawn into an SVG image", "svg", true},
	{"png     : rasterized image", "png", true},
	{"mathlive: leave math to the MathLive widget", "mathlive", false},
	{"raw     : keep LaTeX source spans only", "svg", false},
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to mathedit! Let's configure the math renderer.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Output format.
	labels := make([]string, len(formatChoices))
	for i, c := range formatChoices {
		labels[i] = c.Label
	}
	formatPrompt := promptui.Select{
		Label: "Select math output format",
		Items: labels,
	}
	idx, _, err := formatPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("format selection: %w", err)
	}
	cfg.Math.OutputFormat = formatChoices[idx].Format
	cfg.Math.UseAlternateEngine = formatChoices[idx].Engine

	// 2. Image scale, only meaningful for images.
	if cfg.Math.UseAlternateEngine {
		scalePrompt := promptui.Prompt{
			Label:    "Image scale",
			Default:  strconv.FormatFloat(cfg.Math.ImageScale, 'f', -1, 64),
			Validate: validateScale,
		}
		scaleStr, err := scalePrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("image scale: %w", err)
		}
		cfg.Math.ImageScale, _ = strconv.ParseFloat(strings.TrimSpace(scaleStr), 64)
	}

	// 3. Port.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	cfg.DataDir, err = dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateScale(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return errors.New("scale must be a number")
	}
	if v <= 0 {
		return errors.New("scale must be positive")
	}
	return nil
}

func validatePort(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
