package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/ipcclient"
	"github.com/pablolion/acd/internal/proto"
)

func newStopCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running daemon to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(flags)
		},
	}
}

func runStop(flags *globalFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientWallClock)
	defer cancel()

	daemonBinary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve daemon binary: %w", err)
	}

	stopCmd := proto.StopCmd{Version: proto.Version, Type: proto.TypeStop}
	env, err := ipcclient.SendOne(ctx, flags.resolveSocketPath(), daemonBinary, stopCmd)
	if err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	if env.Type == proto.TypeErr {
		return fmt.Errorf("daemon rejected stop request")
	}
	fmt.Println("acd daemon is shutting down")
	return nil
}
