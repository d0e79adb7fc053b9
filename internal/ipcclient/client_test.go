package ipcclient

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pablolion/acd/internal/proto"
)

// fakeServer accepts a single connection and echoes back a canned Pong,
// exercising Connect/SendOne without needing the actor/ipcserver stack.
func fakeServer(t *testing.T, sockPath string) (ln net.Listener, reply func([]byte)) {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_ = buf[:n]
		pong := proto.PongMsg{Version: proto.Version, Type: proto.TypePong}
		b, _ := json.Marshal(pong)
		conn.Write(append(b, '\n'))
	}()
	return ln, nil
}

func TestConnectFastPath(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")
	ln, _ := fakeServer(t, sockPath)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := Connect(ctx, sockPath, "/bin/false")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()
}

func TestConnectFailsWithoutDaemonBinary(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, sockPath, "/nonexistent/acd-binary-does-not-exist")
	if err == nil {
		t.Fatal("expected Connect to fail when no listener and spawn fails")
	}
}

func TestSendOneRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")
	ln, _ := fakeServer(t, sockPath)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ping := struct {
		Version int        `json:"version"`
		Type    proto.Type `json:"type"`
	}{proto.Version, proto.TypePing}

	env, err := SendOne(ctx, sockPath, "/bin/false", ping)
	if err != nil {
		t.Fatalf("SendOne: %v", err)
	}
	if env.Type != proto.TypePong {
		t.Fatalf("reply type = %s, want Pong", env.Type)
	}
}

// echoSubscribeServer accepts repeated connections, replying to each with a
// Snapshot frame then closing, to exercise Subscriber's reconnect loop.
func echoSubscribeServer(t *testing.T, sockPath string, closes int) net.Listener {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for i := 0; i < closes; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 4096)
			conn.Read(buf)
			snap := proto.SnapshotMsg{Version: proto.Version, Type: proto.TypeSnapshot}
			b, _ := json.Marshal(snap)
			conn.Write(append(b, '\n'))
			conn.Close()
		}
	}()
	return ln
}

func TestSubscriberReconnectsOnDisconnect(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "acd.sock")
	ln := echoSubscribeServer(t, sockPath, 2)
	defer ln.Close()

	var mu sync.Mutex
	frameCount := 0
	disconnectCount := 0

	sub := &Subscriber{
		SocketPath:   sockPath,
		DaemonBinary: "/bin/false",
		OnFrame: func(env proto.Envelope, _ []byte) {
			mu.Lock()
			frameCount++
			mu.Unlock()
		},
		OnDisconnect: func(error) {
			mu.Lock()
			disconnectCount++
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sub.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if frameCount < 2 {
		t.Errorf("frameCount = %d, want >= 2 across reconnects", frameCount)
	}
	if disconnectCount < 2 {
		t.Errorf("disconnectCount = %d, want >= 2", disconnectCount)
	}
}
