// Package shellhook runs the configured TUI activation/reopen hooks (spec
// §6): `sh -c <command>` with session context passed via environment
// variables and the full snapshot piped to stdin. The exec.Command /
// CommandContext shape follows the teacher's tmux control invocations
// (internal/monitor/tmux.go, internal/ws/server.go select-pane/select-window).
package shellhook

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/session"
)

// Runner executes a configured list of shell hooks against a session
// snapshot, one at a time, continuing past individual failures (spec §6:
// "subsequent hooks still run").
type Runner struct {
	Log *logrus.Logger
}

// RunAll executes every hook in hooks against snap. Each hook gets its own
// timeout derived from its TimeoutSecs (spec §6's "per-hook timeout").
func (r *Runner) RunAll(ctx context.Context, hooks []config.ShellHook, snap session.Snapshot) {
	if len(hooks) == 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		r.logf(logrus.WarnLevel, snap, "marshal snapshot for shell hooks: %v", err)
		return
	}
	for _, h := range hooks {
		r.runOne(ctx, h, snap, payload)
	}
}

func (r *Runner) runOne(ctx context.Context, h config.ShellHook, snap session.Snapshot, payload []byte) {
	timeout := time.Duration(h.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultShellHookTimeout
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, "sh", "-c", h.Command)
	cmd.Env = append(cmd.Environ(),
		"ACD_SESSION_ID="+snap.SessionID,
		"ACD_WORKING_DIR="+snap.WorkingDir,
		"ACD_STATUS="+snap.Status.String(),
	)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	entry := r.Log.WithFields(logrus.Fields{
		"session_id": snap.SessionID,
		"command":    h.Command,
	})
	if hookCtx.Err() == context.DeadlineExceeded {
		entry.Warn("shell hook timed out")
		return
	}
	if err != nil {
		entry.WithError(err).Debug("shell hook exited non-zero")
	}
	if stdout.Len() > 0 {
		entry.Debugf("stdout: %s", stdout.String())
	}
	if stderr.Len() > 0 {
		entry.Debugf("stderr: %s", stderr.String())
	}
}

func (r *Runner) logf(level logrus.Level, snap session.Snapshot, format string, args ...interface{}) {
	r.Log.WithField("session_id", snap.SessionID).Logf(level, format, args...)
}
