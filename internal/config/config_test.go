package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Daemon.IdleTimeout.AsDuration() != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Daemon.IdleTimeout.AsDuration(), DefaultIdleTimeout)
	}
	if cfg.Daemon.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.Daemon.LogLevel, DefaultLogLevel)
	}
	if cfg.Daemon.ClosedRingSize != 20 {
		t.Errorf("ClosedRingSize = %d, want 20", cfg.Daemon.ClosedRingSize)
	}
	if cfg.Daemon.PreToolUsePolicy != DefaultPreToolUsePolicy {
		t.Errorf("PreToolUsePolicy = %q, want %q", cfg.Daemon.PreToolUsePolicy, DefaultPreToolUsePolicy)
	}
	if cfg.TUI.Layout != DefaultLayout {
		t.Errorf("Layout = %q, want %q", cfg.TUI.Layout, DefaultLayout)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText returned error: %v", err)
	}
	if d.AsDuration() != 90*time.Second {
		t.Errorf("got %v, want 90s", d.AsDuration())
	}

	var bad Duration
	if err := bad.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected error for invalid duration text")
	}
}

func TestDurationMarshalText(t *testing.T) {
	d := Duration(2 * time.Minute)
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText returned error: %v", err)
	}
	if string(text) != "2m0s" {
		t.Errorf("got %q, want %q", text, "2m0s")
	}
}

func TestLoadParsesTOMLAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[daemon]
idle_timeout = "30m"
log_level = "debug"
closed_ring_size = 5

[tui]
layout = "compact"

[[tui.activate_hooks]]
command = "notify-send hello"
timeout_secs = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if cfg.Daemon.IdleTimeout.AsDuration() != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", cfg.Daemon.IdleTimeout.AsDuration())
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Daemon.LogLevel)
	}
	if cfg.Daemon.ClosedRingSize != 5 {
		t.Errorf("ClosedRingSize = %d, want 5", cfg.Daemon.ClosedRingSize)
	}
	// Fields not present in the file retain their defaults.
	if cfg.Daemon.UsageFetchInterval.AsDuration() != DefaultUsageFetchInterval {
		t.Errorf("UsageFetchInterval = %v, want default", cfg.Daemon.UsageFetchInterval.AsDuration())
	}
	if cfg.TUI.Layout != "compact" {
		t.Errorf("Layout = %q, want compact", cfg.TUI.Layout)
	}
	if len(cfg.TUI.ActivateHooks) != 1 || cfg.TUI.ActivateHooks[0].Command != "notify-send hello" {
		t.Fatalf("ActivateHooks = %+v", cfg.TUI.ActivateHooks)
	}
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[daemon]
log_level = "info"
made_up_field = "x"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 entry", warnings)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[daemon]
log_level = "verbose"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := Load(path); err == nil {
		t.Error("expected error for invalid log_level")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.toml")

	cfg, warnings, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if cfg.Daemon.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default", cfg.Daemon.LogLevel)
	}
}

func TestValidateRejectsInvalidPreToolUsePolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.Daemon.PreToolUsePolicy = "bogus"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for invalid pretooluse_policy")
	}
}

func TestValidateRejectsEmptyHookCommand(t *testing.T) {
	cfg := defaultConfig()
	cfg.TUI.ReopenHooks = []ShellHook{{Command: "", TimeoutSecs: 1}}
	if err := Validate(cfg); err == nil {
		t.Error("expected error for empty hook command")
	}
}

func TestDiffReportsHotReloadableChanges(t *testing.T) {
	old := defaultConfig()
	next := defaultConfig()
	next.Daemon.LogLevel = "debug"
	next.Daemon.IdleTimeout = Duration(10 * time.Minute)
	next.TUI.Layout = "compact"

	changes := Diff(old, next)
	if len(changes) != 3 {
		t.Fatalf("changes = %v, want 3 entries", changes)
	}
}

func TestDiffExcludesLogFile(t *testing.T) {
	old := defaultConfig()
	next := defaultConfig()
	next.Daemon.LogFile = "/var/log/acd.log"

	if changes := Diff(old, next); len(changes) != 0 {
		t.Errorf("log_file change should not be hot-reloadable: %v", changes)
	}
}

func TestDefaultPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("ACD_CONFIG_PATH", "/tmp/custom-acd-config.toml")
	if got := DefaultPath(); got != "/tmp/custom-acd-config.toml" {
		t.Errorf("DefaultPath() = %q, want override", got)
	}
}
