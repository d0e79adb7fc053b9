package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/ipcclient"
	"github.com/pablolion/acd/internal/proto"
)

func newReloadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the running daemon to re-read its config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReload(flags)
		},
	}
}

func runReload(flags *globalFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientWallClock)
	defer cancel()

	daemonBinary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve daemon binary: %w", err)
	}

	reloadCmd := struct {
		Version int        `json:"version"`
		Type    proto.Type `json:"type"`
	}{proto.Version, proto.TypeReload}

	env, err := ipcclient.SendOne(ctx, flags.resolveSocketPath(), daemonBinary, reloadCmd)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	switch env.Type {
	case proto.TypeOk:
		fmt.Println("config reloaded")
	case proto.TypeReloadFailed:
		var failed proto.ReloadFailedMsg
		if err := json.Unmarshal(env.Raw, &failed); err == nil {
			return fmt.Errorf("reload rejected: %s", failed.Reason)
		}
		return fmt.Errorf("reload rejected")
	default:
		return fmt.Errorf("unexpected reply type %s", env.Type)
	}
	return nil
}
