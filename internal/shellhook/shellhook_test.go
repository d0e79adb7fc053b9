package shellhook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/session"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRunAllWritesEnvAndStdinToOutputFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	log := logrus.New()
	log.SetOutput(discardWriter{})
	r := &Runner{Log: log}

	hook := config.ShellHook{
		Command:     `echo "$ACD_SESSION_ID $ACD_WORKING_DIR $ACD_STATUS" > "` + outPath + `"; cat >> "` + outPath + `"`,
		TimeoutSecs: 2,
	}

	snap := session.Snapshot{
		SessionID:  "s1",
		WorkingDir: "/p/a",
		Status:     session.Working,
	}

	r.RunAll(context.Background(), []config.ShellHook{hook}, snap)

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "s1") || !strings.Contains(content, "/p/a") || !strings.Contains(content, "working") {
		t.Errorf("output missing expected env values: %q", content)
	}
	if !strings.Contains(content, `"session_id":"s1"`) {
		t.Errorf("expected snapshot JSON piped to stdin, got %q", content)
	}
}

func TestRunAllContinuesAfterFailingHook(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	log := logrus.New()
	log.SetOutput(discardWriter{})
	r := &Runner{Log: log}

	hooks := []config.ShellHook{
		{Command: "exit 1", TimeoutSecs: 2},
		{Command: `echo ok > "` + outPath + `"`, TimeoutSecs: 2},
	}

	snap := session.Snapshot{SessionID: "s1", Status: session.Working}
	r.RunAll(context.Background(), hooks, snap)

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected second hook to run despite first failing: %v", err)
	}
}

func TestRunAllTerminatesHookExceedingTimeout(t *testing.T) {
	log := logrus.New()
	log.SetOutput(discardWriter{})
	r := &Runner{Log: log}

	hook := config.ShellHook{Command: "sleep 5", TimeoutSecs: 1}
	snap := session.Snapshot{SessionID: "s1"}

	start := time.Now()
	r.RunAll(context.Background(), []config.ShellHook{hook}, snap)
	if time.Since(start) > 3*time.Second {
		t.Errorf("hook was not terminated promptly at its timeout")
	}
}

func TestRunAllNoopOnEmptyHookList(t *testing.T) {
	log := logrus.New()
	log.SetOutput(discardWriter{})
	r := &Runner{Log: log}
	r.RunAll(context.Background(), nil, session.Snapshot{SessionID: "s1"})
}
