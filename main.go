// The main package for the stacfetch executable.
package main

import (
	"os"

	"github.com/eodatalab/stacfetch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
