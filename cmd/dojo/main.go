// cmd/dojo/main.go
//
// This is the entry point for the dojo manager.
// Run without arguments from inside a dojo repository to get the
// interactive menu; every menu action is also available as a subcommand
// for scripts.
//
// Flow:
// 1. Load DOJO_* settings and open the diagnostic log and journal
// 2. Build the manager over git for the repository root
// 3. Either start the TUI or run the requested subcommand

package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errStepsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
