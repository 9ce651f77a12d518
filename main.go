package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ziadkadry99/mathedit/cmd"
)

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS env; runtime defaults
	// apply then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		if os.Getenv("MATHEDIT_DEBUG") != "" {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
