// Package ipcclient implements the client half of the IPC protocol (spec
// §4.3): connect-with-auto-start for short-lived hook processes, and a
// reconnecting long-lived subscriber for dashboard clients. The
// reconnect/backoff shape is grounded on the teacher's WSClient.Listen
// (tui/internal/client/ws.go), translated from a WebSocket dial loop onto a
// Unix socket dial loop.
package ipcclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/pablolion/acd/internal/proto"
)

// Connection attempt tuning (spec §4.3).
const (
	FastConnectTimeout = 50 * time.Millisecond
	SocketPollInterval = 100 * time.Millisecond
	SocketPollTimeout  = 2 * time.Second
	RetryAttempts      = 3
	RetryDelay         = 100 * time.Millisecond
)

// Reconnect tuning for the long-lived subscriber, mirrored from the
// teacher's WSClient reconnect loop.
const (
	ReconnectBaseDelay = 1 * time.Second
	ReconnectMaxDelay  = 30 * time.Second
)

// ErrDaemonUnreachable is returned when auto-start and all retries fail.
var ErrDaemonUnreachable = errors.New("ipcclient: daemon unreachable")

// Connect implements spec §4.3's connect-with-auto-start sequence: a fast
// direct dial, then (on failure) spawning the daemon detached and polling
// for the socket file before a bounded number of retries.
func Connect(ctx context.Context, socketPath, daemonBinary string) (net.Conn, error) {
	if conn, err := net.DialTimeout("unix", socketPath, FastConnectTimeout); err == nil {
		return conn, nil
	}

	if err := spawnDetached(daemonBinary); err != nil {
		return nil, fmt.Errorf("%w: spawn daemon: %v", ErrDaemonUnreachable, err)
	}

	deadline := time.Now().Add(SocketPollTimeout)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: socket file never appeared", ErrDaemonUnreachable)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(SocketPollInterval):
		}
	}

	var lastErr error
	for i := 0; i < RetryAttempts; i++ {
		conn, err := net.DialTimeout("unix", socketPath, FastConnectTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrDaemonUnreachable, lastErr)
}

// spawnDetached launches the daemon binary as a background process
// detached from the caller's session, with stdio discarded (spec §4.3:
// "child inherits no controlling terminal; new session; stdio redirected
// to log file" — the daemon itself reopens its log file per
// [daemon].log_file; stdio here is simply discarded).
func spawnDetached(daemonBinary string) error {
	cmd := exec.Command(daemonBinary, "daemon")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setDetached(cmd)
	return cmd.Start()
}

// SendOne implements the hook's fire-one-message-and-exit pattern (spec
// §4.3, §4.4): connect-with-auto-start, write one framed message, read at
// most one reply line, then return. The whole call is bounded by ctx,
// which callers should derive with a 5s timeout.
func SendOne(ctx context.Context, socketPath, daemonBinary string, msg interface{}) (proto.Envelope, error) {
	conn, err := Connect(ctx, socketPath, daemonBinary)
	if err != nil {
		return proto.Envelope{}, err
	}
	defer conn.Close()

	b, err := json.Marshal(msg)
	if err != nil {
		return proto.Envelope{}, fmt.Errorf("encode message: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(append(b, '\n')); err != nil {
		return proto.Envelope{}, fmt.Errorf("write message: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return proto.Envelope{}, fmt.Errorf("read reply: %w", err)
	}
	return proto.Decode(line)
}

// Subscriber is a long-lived, reconnecting client for dashboard consumers
// (spec §4.3: "after connect and subscribe, they consume a stream
// indefinitely; on disconnect they re-enter the auto-start+retry loop").
type Subscriber struct {
	SocketPath   string
	DaemonBinary string

	// OnFrame is invoked for every decoded wire frame, in order, on the
	// goroutine running Run. It must not block for long.
	OnFrame func(proto.Envelope, []byte)
	// OnDisconnect is invoked (optionally) whenever the connection drops,
	// before the reconnect delay is applied.
	OnDisconnect func(error)
}

// Run connects, subscribes, and relays frames to OnFrame until ctx is
// cancelled, transparently reconnecting with exponential backoff on any
// disconnect.
func (s *Subscriber) Run(ctx context.Context) {
	delay := ReconnectBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := Connect(ctx, s.SocketPath, s.DaemonBinary)
		if err != nil {
			if s.OnDisconnect != nil {
				s.OnDisconnect(err)
			}
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = minDuration(delay*2, ReconnectMaxDelay)
			continue
		}

		delay = ReconnectBaseDelay
		err = s.pump(ctx, conn)
		conn.Close()
		if s.OnDisconnect != nil {
			s.OnDisconnect(err)
		}
		if !sleepOrDone(ctx, delay) {
			return
		}
		delay = minDuration(delay*2, ReconnectMaxDelay)
	}
}

func (s *Subscriber) pump(ctx context.Context, conn net.Conn) error {
	subCmd := struct {
		Version int        `json:"version"`
		Type    proto.Type `json:"type"`
	}{proto.Version, proto.TypeSubscribe}
	b, err := json.Marshal(subCmd)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), proto.MaxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := append([]byte(nil), line...)
		env, err := proto.Decode(frame)
		if err != nil {
			continue
		}
		if s.OnFrame != nil {
			s.OnFrame(env, frame)
		}
		if env.Type == proto.TypeShutdown {
			return errors.New("server closed the connection")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("connection closed by peer")
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
