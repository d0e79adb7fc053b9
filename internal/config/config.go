// Package config loads and hot-reloads the daemon's TOML configuration
// file (spec §6). All fields are optional; unknown keys warn but never
// block startup; fields tied to process identity (socket/log file paths)
// are not hot-reloadable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of the TOML document at
// ${XDG_CONFIG_HOME:-~/.config}/acd/config.toml.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	TUI    TUIConfig    `toml:"tui"`
}

// DaemonConfig holds daemon-process settings.
type DaemonConfig struct {
	IdleTimeout        Duration `toml:"idle_timeout"`
	UsageFetchInterval Duration `toml:"usage_fetch_interval"`
	LogLevel           string   `toml:"log_level"`
	LogFile            string   `toml:"log_file"`
	ClosedRingSize     int      `toml:"closed_ring_size"`
	PreToolUsePolicy   string   `toml:"pretooluse_policy"`
	InactiveThreshold  Duration `toml:"inactive_threshold"`
}

// TUIConfig holds dashboard-client settings.
type TUIConfig struct {
	ActivateHooks []ShellHook `toml:"activate_hooks"`
	ReopenHooks   []ShellHook `toml:"reopen_hooks"`
	Layout        string      `toml:"layout"`
}

// ShellHook is one configured `sh -c` command run on session activation
// (spec §6 "Shell hook execution").
type ShellHook struct {
	Command     string `toml:"command"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// Duration wraps time.Duration to accept TOML string values like "60m".
type Duration time.Duration

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler, used by BurntSushi/toml
// for any TOML value quoted as a string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Fields tied to process identity — restart, not reload, is required to
// change them.
const (
	FieldSocketPath = "socket_path"
	FieldLogFile    = "log_file"
)

// Default values, per spec §6.
const (
	DefaultIdleTimeout        = 60 * time.Minute
	DefaultUsageFetchInterval = 180 * time.Second
	DefaultLogLevel           = "info"
	DefaultLayout             = "default"
	DefaultPreToolUsePolicy   = "ignore"
	DefaultInactiveThreshold  = 2 * time.Minute
	DefaultShellHookTimeout   = 5 * time.Second
)

// ValidLogLevels enumerates the recognized [daemon].log_level values.
var ValidLogLevels = map[string]bool{
	"error": true, "warn": true, "info": true, "debug": true, "trace": true,
}

// ValidPreToolUsePolicies enumerates the recognized
// [daemon].pretooluse_policy values (SPEC_FULL §6 supplement resolving the
// spec's PreToolUse open question).
var ValidPreToolUsePolicies = map[string]bool{"ignore": true, "working": true}

func defaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			IdleTimeout:        Duration(DefaultIdleTimeout),
			UsageFetchInterval: Duration(DefaultUsageFetchInterval),
			LogLevel:           DefaultLogLevel,
			ClosedRingSize:     20,
			PreToolUsePolicy:   DefaultPreToolUsePolicy,
			InactiveThreshold:  Duration(DefaultInactiveThreshold),
		},
		TUI: TUIConfig{
			Layout: DefaultLayout,
		},
	}
}

// Default returns a fresh Config populated with defaults, before any file
// is read. Exported for callers that need defaults without touching disk.
func Default() *Config { return defaultConfig() }

// Load reads and parses the TOML file at path, starting from defaults so
// every field remains populated even if the file supplies only a subset.
// Unknown keys produce warnings (returned, not fatal) rather than errors.
func Load(path string) (*Config, []string, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var warnings []string
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key: %s", key.String()))
	}

	if err := Validate(cfg); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// LoadOrDefault loads from path if it exists, returning defaults otherwise
// (the daemon starts fine with no config file present).
func LoadOrDefault(path string) (*Config, []string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil, nil
	}
	return Load(path)
}

// Validate checks that all fields hold recognized values. It never rejects
// unknown keys (those only warn); it rejects genuinely invalid values —
// e.g. an unrecognized log level — matching spec §4.1's "if parseable and
// all values valid" reload gate and §6's fresh-start exit code 1 for
// "unreadable config with invalid syntax."
func Validate(cfg *Config) error {
	if cfg.Daemon.LogLevel != "" && !ValidLogLevels[cfg.Daemon.LogLevel] {
		return fmt.Errorf("invalid daemon.log_level: %q", cfg.Daemon.LogLevel)
	}
	if cfg.Daemon.PreToolUsePolicy != "" && !ValidPreToolUsePolicies[cfg.Daemon.PreToolUsePolicy] {
		return fmt.Errorf("invalid daemon.pretooluse_policy: %q", cfg.Daemon.PreToolUsePolicy)
	}
	if cfg.Daemon.IdleTimeout < 0 || cfg.Daemon.UsageFetchInterval < 0 || cfg.Daemon.InactiveThreshold < 0 {
		return fmt.Errorf("daemon timings must be non-negative")
	}
	for _, h := range append(append([]ShellHook{}, cfg.TUI.ActivateHooks...), cfg.TUI.ReopenHooks...) {
		if h.Command == "" {
			return fmt.Errorf("tui hook entries require a non-empty command")
		}
	}
	return nil
}

// Diff compares the hot-reloadable subset of two configs and returns
// human-readable descriptions of what changed, mirroring the teacher's
// config.Diff. Fields tied to process identity (log_file) are intentionally
// excluded — those require a restart, not a reload.
func Diff(old, next *Config) []string {
	var changes []string
	if old.Daemon.IdleTimeout != next.Daemon.IdleTimeout {
		changes = append(changes, fmt.Sprintf("daemon.idle_timeout: %s -> %s", old.Daemon.IdleTimeout.AsDuration(), next.Daemon.IdleTimeout.AsDuration()))
	}
	if old.Daemon.UsageFetchInterval != next.Daemon.UsageFetchInterval {
		changes = append(changes, fmt.Sprintf("daemon.usage_fetch_interval: %s -> %s", old.Daemon.UsageFetchInterval.AsDuration(), next.Daemon.UsageFetchInterval.AsDuration()))
	}
	if old.Daemon.LogLevel != next.Daemon.LogLevel {
		changes = append(changes, fmt.Sprintf("daemon.log_level: %s -> %s", old.Daemon.LogLevel, next.Daemon.LogLevel))
	}
	if old.Daemon.ClosedRingSize != next.Daemon.ClosedRingSize {
		changes = append(changes, fmt.Sprintf("daemon.closed_ring_size: %d -> %d", old.Daemon.ClosedRingSize, next.Daemon.ClosedRingSize))
	}
	if old.Daemon.PreToolUsePolicy != next.Daemon.PreToolUsePolicy {
		changes = append(changes, fmt.Sprintf("daemon.pretooluse_policy: %s -> %s", old.Daemon.PreToolUsePolicy, next.Daemon.PreToolUsePolicy))
	}
	if old.Daemon.InactiveThreshold != next.Daemon.InactiveThreshold {
		changes = append(changes, fmt.Sprintf("daemon.inactive_threshold: %s -> %s", old.Daemon.InactiveThreshold.AsDuration(), next.Daemon.InactiveThreshold.AsDuration()))
	}
	if old.TUI.Layout != next.TUI.Layout {
		changes = append(changes, fmt.Sprintf("tui.layout: %s -> %s", old.TUI.Layout, next.TUI.Layout))
	}
	if len(old.TUI.ActivateHooks) != len(next.TUI.ActivateHooks) {
		changes = append(changes, "tui.activate_hooks: changed")
	}
	if len(old.TUI.ReopenHooks) != len(next.TUI.ReopenHooks) {
		changes = append(changes, "tui.reopen_hooks: changed")
	}
	return changes
}

func defaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// DefaultPath returns the default config file location, honoring
// ACD_CONFIG_PATH.
func DefaultPath() string {
	if v := os.Getenv("ACD_CONFIG_PATH"); v != "" {
		return v
	}
	return filepath.Join(defaultConfigDir(), "acd", "config.toml")
}
