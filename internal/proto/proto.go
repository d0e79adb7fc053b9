// Package proto defines the JSON Lines wire protocol spoken over the
// daemon's Unix socket: one JSON object per line, a "version" field on
// every message, unknown fields ignored, missing optional fields default.
package proto

import (
	"encoding/json"

	"github.com/pablolion/acd/internal/session"
)

// Version is the only protocol version implemented. A structural mismatch
// (a client claiming a different version) is the one handshake error; all
// other schema drift is handled by field-level forward/backward
// compatibility (unknown fields ignored, missing fields default).
const Version = 1

// MaxLineBytes bounds a single JSON Lines frame. Exceeding it closes the
// connection with a framing error.
const MaxLineBytes = 64 * 1024

// Type is the message type tag carried by every frame.
type Type string

// Client → server command tags.
const (
	TypeSet       Type = "Set"
	TypeRemove    Type = "Remove"
	TypeReopen    Type = "Reopen"
	TypeList      Type = "List"
	TypeSubscribe Type = "Subscribe"
	TypePing      Type = "Ping"
	TypeStatus    Type = "Status"
	TypeReload    Type = "Reload"
	TypeStop      Type = "Stop"
)

// Server → client reply/push tags.
const (
	TypeOk             Type = "Ok"
	TypeErr            Type = "Err"
	TypeSnapshot       Type = "Snapshot"
	TypeUpdate         Type = "Update"
	TypeRemoved        Type = "Removed"
	TypeClosed         Type = "Closed"
	TypeReopened       Type = "Reopened"
	TypeUsageUpdated   Type = "UsageUpdated"
	TypeUsageError     Type = "UsageError"
	TypeConfigReloaded Type = "ConfigReloaded"
	TypeReloadFailed   Type = "ReloadFailed"
	TypeError          Type = "Error"
	TypeShutdown       Type = "Shutdown"
	TypePong           Type = "Pong"
	TypeHealth         Type = "Health"
)

// Envelope is the outermost shape of every wire message: the version and
// type tag are always present, with the type-specific payload inlined via
// raw delayed decoding.
type Envelope struct {
	Version int             `json:"version"`
	Type    Type            `json:"type"`
	Raw     json.RawMessage `json:"-"`
}

// envelopeWire mirrors Envelope for the purpose of flattening
// type-specific fields onto the same JSON object (spec: "{ version, type,
// ...fields }", not a nested payload object) while still letting us
// decode the remainder generically.
type envelopeWire struct {
	Version int  `json:"version"`
	Type    Type `json:"type"`
}

// Decode parses one JSON line into its envelope, retaining the full raw
// line so the caller can unmarshal type-specific fields with
// json.Unmarshal(env.Raw, &cmd).
func Decode(line []byte) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal(line, &w); err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: w.Version, Type: w.Type, Raw: line}, nil
}

// --- Client → server command payloads ---

// SetCmd is the "Set" command: update-or-create a session.
type SetCmd struct {
	Version     int     `json:"version"`
	Type        Type    `json:"type"`
	SessionID   string  `json:"session_id"`
	Status      string  `json:"status"`
	WorkingDir  string  `json:"working_dir,omitempty"`
	Priority    *uint64 `json:"priority,omitempty"`
	AgentType   string  `json:"agent_type,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
}

// RemoveCmd is the "Remove" command.
type RemoveCmd struct {
	Version   int    `json:"version"`
	Type      Type   `json:"type"`
	SessionID string `json:"session_id"`
}

// ReopenCmd is the "Reopen" command. Status defaults to "attention" when
// omitted.
type ReopenCmd struct {
	Version   int    `json:"version"`
	Type      Type   `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
}

// StopCmd is the "Stop" command.
type StopCmd struct {
	Version int  `json:"version"`
	Type    Type `json:"type"`
	Force   bool `json:"force,omitempty"`
}

// --- Server → client payloads ---

// OkReply acknowledges a command with no further data.
type OkReply struct {
	Version int  `json:"version"`
	Type    Type `json:"type"`
}

// OkSessionReply acknowledges a command and carries the resulting session
// (used by Reopen).
type OkSessionReply struct {
	Version int               `json:"version"`
	Type    Type              `json:"type"`
	Session session.Snapshot  `json:"session"`
}

// ErrReply reports a protocol/domain error on an otherwise-open connection.
type ErrReply struct {
	Version int    `json:"version"`
	Type    Type   `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Error kinds used in ErrReply.Kind, matching the spec's domain taxonomy.
const (
	ErrKindInvalidField = "InvalidField"
	ErrKindNotFound     = "NotFound"
	ErrKindInvalidState = "InvalidState"
	ErrKindProtocol     = "Protocol"
)

// SnapshotMsg is the full state snapshot sent on Subscribe/List.
type SnapshotMsg struct {
	Version int                 `json:"version"`
	Type    Type                `json:"type"`
	Sessions []session.Snapshot `json:"sessions"`
	Closed   []session.Snapshot `json:"closed"`
	Usage    *UsagePayload      `json:"usage,omitempty"`
	Server   ServerInfo         `json:"server"`
}

// ServerInfo describes the daemon at snapshot time.
type ServerInfo struct {
	Version    int    `json:"version"`
	PID        int    `json:"pid"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// UsagePayload is the wire shape of a cached usage datum.
type UsagePayload struct {
	Periods []UsagePeriod `json:"periods"`
}

// UsagePeriod is one reporting window within a UsagePayload.
type UsagePeriod struct {
	Label            string `json:"label"`
	UtilizationPct   float64 `json:"utilization_pct"`
	ResetsAt         int64  `json:"resets_at"`
}

// UpdateMsg pushes a created/modified session to subscribers.
type UpdateMsg struct {
	Version int              `json:"version"`
	Type    Type             `json:"type"`
	Session session.Snapshot `json:"session"`
}

// RemovedMsg announces explicit removal.
type RemovedMsg struct {
	Version   int    `json:"version"`
	Type      Type   `json:"type"`
	SessionID string `json:"session_id"`
}

// ClosedMsg announces a transition to Closed, carrying the final snapshot.
type ClosedMsg struct {
	Version int              `json:"version"`
	Type    Type             `json:"type"`
	Session session.Snapshot `json:"session"`
}

// ReopenedMsg announces a ring→live revival.
type ReopenedMsg struct {
	Version int              `json:"version"`
	Type    Type             `json:"type"`
	Session session.Snapshot `json:"session"`
}

// UsageUpdatedMsg announces a successful usage fetch.
type UsageUpdatedMsg struct {
	Version int          `json:"version"`
	Type    Type         `json:"type"`
	Datum   UsagePayload `json:"datum"`
}

// UsageErrorMsg announces a failed usage fetch; the prior datum is retained
// by the daemon and annotated with staleness for display.
type UsageErrorMsg struct {
	Version       int    `json:"version"`
	Type          Type   `json:"type"`
	Kind          string `json:"kind"`
	StalenessSecs int64  `json:"staleness_secs"`
}

// ConfigReloadedMsg announces a successful hot reload.
type ConfigReloadedMsg struct {
	Version int      `json:"version"`
	Type    Type     `json:"type"`
	Changes []string `json:"changes,omitempty"`
}

// ReloadFailedMsg announces a rejected hot reload; the previous config is
// retained.
type ReloadFailedMsg struct {
	Version int    `json:"version"`
	Type    Type   `json:"type"`
	Reason  string `json:"reason"`
}

// ErrorMsg is a non-fatal daemon error surfaced to subscribers (distinct
// from ErrReply, which replies to a specific command).
type ErrorMsg struct {
	Version int    `json:"version"`
	Type    Type   `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ShutdownMsg announces daemon exit.
type ShutdownMsg struct {
	Version int    `json:"version"`
	Type    Type   `json:"type"`
	Reason  string `json:"reason"`
}

// PongMsg replies to Ping.
type PongMsg struct {
	Version int  `json:"version"`
	Type    Type `json:"type"`
}

// HealthMsg replies to Status.
type HealthMsg struct {
	Version          int    `json:"version"`
	Type             Type   `json:"type"`
	PID              int    `json:"pid"`
	UptimeSecs       int64  `json:"uptime_secs"`
	LiveCount        int    `json:"live_count"`
	ClosedCount      int    `json:"closed_count"`
	SubscriberCount  int    `json:"subscriber_count"`
	MemoryBytes      uint64 `json:"memory_bytes,omitempty"`
	GoVersion        string `json:"go_version,omitempty"`
	StartTime        string `json:"start_time,omitempty"`
}

// Shutdown reasons, used consistently across auto-stop, signals, and the
// Stop command.
const (
	ShutdownReasonSignal   = "signal"
	ShutdownReasonCommand  = "command"
	ShutdownReasonAutoStop = "auto_stop"
	ShutdownReasonFatal    = "fatal"
	ShutdownReasonOverflow = "overflow"
)
