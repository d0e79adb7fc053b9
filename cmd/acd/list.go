package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/ipcclient"
	"github.com/pablolion/acd/internal/proto"
)

// clientWallClock bounds one-shot client commands against the daemon.
const clientWallClock = 5 * time.Second

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live and closed sessions tracked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(flags)
		},
	}
}

func runList(flags *globalFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientWallClock)
	defer cancel()

	daemonBinary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve daemon binary: %w", err)
	}

	listCmd := struct {
		Version int        `json:"version"`
		Type    proto.Type `json:"type"`
	}{proto.Version, proto.TypeList}

	env, err := ipcclient.SendOne(ctx, flags.resolveSocketPath(), daemonBinary, listCmd)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var snap proto.SnapshotMsg
	if err := json.Unmarshal(env.Raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	printSnapshot(snap)
	return nil
}

func printSnapshot(snap proto.SnapshotMsg) {
	fmt.Println(styleHeader.Render(fmt.Sprintf("live sessions (%d)", len(snap.Sessions))))
	for _, s := range snap.Sessions {
		fmt.Printf("  %-20s %-12s %s  %s\n",
			s.SessionID, statusBadge(s.Status), styleDimmed.Render(s.DisplayName),
			styleDimmed.Render(fmt.Sprintf("%ds elapsed", s.ElapsedSecs)))
	}
	if len(snap.Closed) > 0 {
		fmt.Println()
		fmt.Println(styleHeader.Render(fmt.Sprintf("closed sessions (%d)", len(snap.Closed))))
		for _, s := range snap.Closed {
			fmt.Printf("  %-20s %-12s %s\n", s.SessionID, statusBadge(s.Status), styleDimmed.Render(s.DisplayName))
		}
	}
}
