// Command midori is the relay's entrypoint: parse the CLI (spec §6),
// initialize logging, and hand off to the supervisor. Configuration
// parsing and the interactive editor are external collaborators per
// spec §1; this file only wires the boundary between them and the core.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
