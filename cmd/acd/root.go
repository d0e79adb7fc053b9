package main

import (
	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/platform"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	socketPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "acd",
		Short: "Agent Console Dashboard daemon and CLI",
		Long:  "acd tracks AI coding agent sessions across terminals via a local daemon and a small hook-driven protocol.",
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.toml (defaults to "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&flags.socketPath, "socket", "", "path to the daemon's Unix socket (defaults to "+platform.SocketPath()+")")

	root.AddCommand(
		newDaemonCmd(flags),
		newHookCmd(flags),
		newListCmd(flags),
		newStatusCmd(flags),
		newStopCmd(flags),
		newReloadCmd(flags),
	)
	return root
}

func (f *globalFlags) resolveConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	return config.DefaultPath()
}

func (f *globalFlags) resolveSocketPath() string {
	if f.socketPath != "" {
		return f.socketPath
	}
	return platform.SocketPath()
}
