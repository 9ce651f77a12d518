package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ziadkadry99/mathedit/internal/config"
	"github.com/ziadkadry99/mathedit/internal/engine"
)

// engineLoadTimeout bounds how long one-shot commands wait for engines.
const engineLoadTimeout = 10 * time.Second

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `mathedit init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger returns the pipeline logger: stderr when verbose, else silent.
func newLogger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// loadEngines starts the alternate engine (and the live engine when given)
// and waits for them. A failed load leaves the capability empty; callers
// fall back to placeholders.
func loadEngines(ctx context.Context, live engine.LiveLoader) *engine.Capabilities {
	caps := engine.NewCapabilities()
	ctx, cancel := context.WithTimeout(ctx, engineLoadTimeout)
	defer cancel()
	if err := engine.Wait(ctx, caps.Load(ctx, engine.LoadMathML, live)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: math engines still loading: %v\n", err)
	}
	if err := caps.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return caps
}
