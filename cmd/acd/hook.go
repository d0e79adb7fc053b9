package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/hook"
	"github.com/pablolion/acd/internal/ipcclient"
)

// hookWallClock bounds the whole hook invocation (spec §4.3: "hard 5s
// overall wall clock").
const hookWallClock = 5 * time.Second

func newHookCmd(flags *globalFlags) *cobra.Command {
	var source string
	var preToolUsePolicy string

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Read an agent hook event from stdin and forward it to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			runHook(flags, source, preToolUsePolicy)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "claudecode", "agent source parser to use")
	cmd.Flags().StringVar(&preToolUsePolicy, "pretooluse-policy", "", "override [daemon].pretooluse_policy for this invocation")
	return cmd
}

// runHook never returns an error to cobra: per spec §4.4 the hook's own
// exit-code discipline (0 or 1, never 2) is self-managed via os.Exit so a
// cobra-level error path (which could surface as a different code) never
// interferes.
func runHook(flags *globalFlags, source, preToolUsePolicy string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookWallClock)
	defer cancel()

	if preToolUsePolicy == "" {
		cfg, _, err := config.LoadOrDefault(flags.resolveConfigPath())
		if err != nil {
			fmt.Fprintln(os.Stderr, "acd hook: load config:", err)
			os.Exit(1)
		}
		preToolUsePolicy = cfg.Daemon.PreToolUsePolicy
	}

	reg := hook.NewRegistry(preToolUsePolicy)
	cmd, err := hook.Run(reg, source, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "acd hook:", err)
		os.Exit(1)
	}
	if cmd == nil {
		os.Exit(0)
	}

	daemonBinary, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "acd hook: resolve daemon binary:", err)
		os.Exit(1)
	}

	if _, err := ipcclient.SendOne(ctx, flags.resolveSocketPath(), daemonBinary, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "acd hook: send update:", err)
		os.Exit(1)
	}
	os.Exit(0)
}
