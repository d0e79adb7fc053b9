// Command acd is the Agent Console Dashboard daemon and CLI: a single
// binary with subcommands for running the daemon, feeding it hook events,
// and querying it from scripts or a terminal. The subcommand tree mirrors
// the teacher's preference for one entrypoint per deployable (cmd/server,
// cmd/racer-tui), collapsed into one binary via cobra since every
// subcommand here talks to the same daemon process.
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
