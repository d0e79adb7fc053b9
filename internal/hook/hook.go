// Package hook implements the ingestion pipeline side of the hook command
// (spec §4.4): parse an agent's structured stdin payload with a
// source-specific parser, map it to a canonical status update, and hand
// back a Set command ready to send over the wire. The HookCallbackInput
// shape and event dispatch structure are grounded on the corpus's
// Claude Code hook callback (HookCallbackInput / runHookCallback).
package hook

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pablolion/acd/internal/proto"
	"github.com/pablolion/acd/internal/session"
)

// Parser extracts a Set command from one hook invocation's raw stdin body.
// A nil command with a nil error means the event is recognized but
// intentionally produces no update (spec §4.4's PreToolUse non-AskUserQuestion
// decision, gated by policy in the ClaudeCode parser).
type Parser interface {
	Parse(body []byte) (*proto.SetCmd, error)
}

// Registry maps a --source flag value to its Parser.
type Registry map[string]Parser

// NewRegistry builds the default registry. ClaudeCode is the only
// pre-registered source (spec §4.4); additional sources slot in here
// without touching the event loop or wire protocol.
func NewRegistry(preToolUsePolicy string) Registry {
	return Registry{
		string(session.ClaudeCode): &ClaudeCodeParser{PreToolUsePolicy: preToolUsePolicy},
	}
}

// ErrUnknownSource is returned when --source names a parser not in the
// registry.
type ErrUnknownSource struct{ Source string }

func (e *ErrUnknownSource) Error() string { return fmt.Sprintf("hook: unknown source %q", e.Source) }

// Run reads body via r, parses it with the named source's parser, and
// returns the resulting Set command (nil if the event produces no update).
func Run(reg Registry, source string, r io.Reader) (*proto.SetCmd, error) {
	p, ok := reg[source]
	if !ok {
		return nil, &ErrUnknownSource{Source: source}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty stdin")
	}
	return p.Parse(body)
}

// claudeHookInput mirrors the subset of Claude Code's hook JSON payload the
// daemon consumes (spec §4.4's canonical extraction table).
type claudeHookInput struct {
	SessionID        string `json:"session_id"`
	Cwd              string `json:"cwd"`
	HookEventName    string `json:"hook_event_name"`
	ToolName         string `json:"tool_name,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
}

// PreToolUsePolicy values (spec.md §9 open question, resolved in SPEC_FULL).
const (
	PreToolUsePolicyIgnore  = "ignore"
	PreToolUsePolicyWorking = "working"
)

// ClaudeCodeParser implements the canonical extraction and event→status
// mapping for the ClaudeCode source (spec §4.4).
type ClaudeCodeParser struct {
	// PreToolUsePolicy controls whether a non-AskUserQuestion PreToolUse
	// event produces a Working update ("working") or is dropped entirely
	// ("ignore", the default).
	PreToolUsePolicy string
}

func (p *ClaudeCodeParser) Parse(body []byte) (*proto.SetCmd, error) {
	var in claudeHookInput
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("parse claude code hook input: %w", err)
	}
	if in.SessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}

	status, ok := p.mapStatus(in)
	if !ok {
		return nil, nil
	}

	return &proto.SetCmd{
		Version:    proto.Version,
		Type:       proto.TypeSet,
		SessionID:  in.SessionID,
		Status:     status,
		WorkingDir: in.Cwd,
		AgentType:  string(session.ClaudeCode),
	}, nil
}

// mapStatus implements spec §4.4's event → status table. ok is false when
// the event is recognized but deliberately produces no update.
func (p *ClaudeCodeParser) mapStatus(in claudeHookInput) (status string, ok bool) {
	switch in.HookEventName {
	case "SessionStart":
		return "attention", true
	case "UserPromptSubmit":
		return "working", true
	case "PreToolUse":
		if in.ToolName == "AskUserQuestion" {
			return "question", true
		}
		if p.policy() == PreToolUsePolicyWorking {
			return "working", true
		}
		return "", false
	case "Stop":
		return "attention", true
	case "Notification":
		switch in.NotificationType {
		case "elicitation_dialog":
			return "question", true
		case "permission_prompt":
			return "attention", true
		}
		return "", false
	case "SessionEnd":
		return "closed", true
	default:
		return "", false
	}
}

func (p *ClaudeCodeParser) policy() string {
	if p.PreToolUsePolicy == "" {
		return PreToolUsePolicyIgnore
	}
	return p.PreToolUsePolicy
}
