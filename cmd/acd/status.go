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

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report daemon health (pid, uptime, session and subscriber counts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(flags)
		},
	}
}

func runStatus(flags *globalFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientWallClock)
	defer cancel()

	daemonBinary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve daemon binary: %w", err)
	}

	statusCmd := struct {
		Version int        `json:"version"`
		Type    proto.Type `json:"type"`
	}{proto.Version, proto.TypeStatus}

	env, err := ipcclient.SendOne(ctx, flags.resolveSocketPath(), daemonBinary, statusCmd)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	var health proto.HealthMsg
	if err := json.Unmarshal(env.Raw, &health); err != nil {
		return fmt.Errorf("decode health reply: %w", err)
	}

	fmt.Println(styleHealthy.Render("acd daemon is running"))
	fmt.Printf("  pid:          %d\n", health.PID)
	fmt.Printf("  uptime:       %ds\n", health.UptimeSecs)
	fmt.Printf("  live:         %d\n", health.LiveCount)
	fmt.Printf("  closed:       %d\n", health.ClosedCount)
	fmt.Printf("  subscribers:  %d\n", health.SubscriberCount)
	if health.MemoryBytes > 0 {
		fmt.Printf("  memory:       %.1f MiB\n", float64(health.MemoryBytes)/(1024*1024))
	}
	if health.GoVersion != "" {
		fmt.Printf("  go version:   %s\n", health.GoVersion)
	}
	if health.StartTime != "" {
		fmt.Printf("  started:      %s\n", health.StartTime)
	}
	return nil
}
