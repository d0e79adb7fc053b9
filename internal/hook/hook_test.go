package hook

import (
	"bytes"
	"strings"
	"testing"
)

func TestSessionStartMapsToAttention(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","cwd":"/p/a","hook_event_name":"SessionStart"}`))
	if err != nil || cmd == nil {
		t.Fatalf("Parse: cmd=%v err=%v", cmd, err)
	}
	if cmd.Status != "attention" || cmd.SessionID != "s1" || cmd.WorkingDir != "/p/a" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestUserPromptSubmitMapsToWorking(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"UserPromptSubmit"}`))
	if err != nil || cmd == nil || cmd.Status != "working" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestPreToolUseAskUserQuestionMapsToQuestion(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"PreToolUse","tool_name":"AskUserQuestion"}`))
	if err != nil || cmd == nil || cmd.Status != "question" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestPreToolUseOtherToolDroppedByDefaultPolicy(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"PreToolUse","tool_name":"Bash"}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cmd != nil {
		t.Fatalf("expected nil cmd under ignore policy, got %+v", cmd)
	}
}

func TestPreToolUseOtherToolWithWorkingPolicy(t *testing.T) {
	p := &ClaudeCodeParser{PreToolUsePolicy: PreToolUsePolicyWorking}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"PreToolUse","tool_name":"Bash"}`))
	if err != nil || cmd == nil || cmd.Status != "working" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestStopMapsToAttention(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"Stop"}`))
	if err != nil || cmd == nil || cmd.Status != "attention" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestNotificationElicitationDialogMapsToQuestion(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"Notification","notification_type":"elicitation_dialog"}`))
	if err != nil || cmd == nil || cmd.Status != "question" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestNotificationPermissionPromptMapsToAttention(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"Notification","notification_type":"permission_prompt"}`))
	if err != nil || cmd == nil || cmd.Status != "attention" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestNotificationUnknownTypeProducesNoUpdate(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"Notification","notification_type":"something_else"}`))
	if err != nil || cmd != nil {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestSessionEndMapsToClosed(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"SessionEnd"}`))
	if err != nil || cmd == nil || cmd.Status != "closed" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestUnknownEventProducesNoUpdate(t *testing.T) {
	p := &ClaudeCodeParser{}
	cmd, err := p.Parse([]byte(`{"session_id":"s1","hook_event_name":"SubagentStop"}`))
	if err != nil || cmd != nil {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestParseMissingSessionIDErrors(t *testing.T) {
	p := &ClaudeCodeParser{}
	if _, err := p.Parse([]byte(`{"hook_event_name":"Stop"}`)); err == nil {
		t.Fatal("expected error for missing session_id")
	}
}

func TestParseMalformedJSONErrors(t *testing.T) {
	p := &ClaudeCodeParser{}
	if _, err := p.Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestRunDispatchesToRegisteredSource(t *testing.T) {
	reg := NewRegistry("")
	cmd, err := Run(reg, "claudecode", bytes.NewReader([]byte(`{"session_id":"s1","hook_event_name":"Stop"}`)))
	if err != nil || cmd == nil || cmd.Status != "attention" {
		t.Fatalf("cmd=%+v err=%v", cmd, err)
	}
}

func TestRunUnknownSource(t *testing.T) {
	reg := NewRegistry("")
	_, err := Run(reg, "bogus", strings.NewReader(`{}`))
	if err == nil {
		t.Fatal("expected ErrUnknownSource")
	}
	if _, ok := err.(*ErrUnknownSource); !ok {
		t.Fatalf("err type = %T, want *ErrUnknownSource", err)
	}
}

func TestRunEmptyStdinErrors(t *testing.T) {
	reg := NewRegistry("")
	_, err := Run(reg, "claudecode", strings.NewReader(""))
	if err == nil {
		t.Fatal("expected error for empty stdin")
	}
}
